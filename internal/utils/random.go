package utils

import (
	"math"
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "庆",
	"建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

const digits = "0123456789"

func GenerateRandomChineseName(rng *rand.Rand) string {
	var sb strings.Builder
	sb.WriteString(commonSurnames[rng.Intn(len(commonSurnames))])

	nameLength := rng.Intn(2) + 1
	for i := 0; i < nameLength; i++ {
		sb.WriteString(commonNameCharacters[rng.Intn(len(commonNameCharacters))])
	}
	return sb.String()
}

// GenerateHandleFromChineseName 取每个字拼音的前若干个字母，再接上 1~3 位数字，例如 "zhwei07"
func GenerateHandleFromChineseName(rng *rand.Rand, chineseName string) string {
	var sb strings.Builder

	for _, py := range pinyin.LazyConvert(chineseName, nil) {
		length := rng.Intn(len(py)) + 1
		sb.WriteString(py[:length])
	}

	digitsLength := rng.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		sb.WriteByte(digits[rng.Intn(len(digits))])
	}

	return sb.String()
}

// GenerateRandomScore 按正态分布生成分数，截断到 [lo, hi] 并保留一位小数
func GenerateRandomScore(rng *rand.Rand, mean, stddev, lo, hi float64) float64 {
	score := rng.NormFloat64()*stddev + mean
	score = math.Max(lo, math.Min(hi, score))
	return math.Round(score*10) / 10
}
