package result

import (
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

type SwapPair [2]string

// ParseSwapInfo 解析形如 "a,b|c,d" 的交换信息，也接受 ";" 作为分隔符
func ParseSwapInfo(info string) ([]SwapPair, error) {
	segments := strings.FieldsFunc(info, func(r rune) bool {
		return r == '|' || r == ';'
	})

	pairs := make([]SwapPair, 0, len(segments))
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		names := strings.Split(segment, ",")
		if len(names) != 2 {
			return nil, fmt.Errorf("交换信息 %q 必须恰好包含两个成员", strings.TrimSpace(segment))
		}
		a, b := strings.TrimSpace(names[0]), strings.TrimSpace(names[1])
		if a == "" || b == "" {
			return nil, fmt.Errorf("交换信息 %q 中存在空的成员名", strings.TrimSpace(segment))
		}
		pairs = append(pairs, SwapPair{a, b})
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("交换信息为空")
	}

	return pairs, nil
}

// Swap 依次交换每一对成员所在的队伍，并按分差更新两队总分
// prev 不会被修改；未找到的成员返回 domain.ErrUnknownMember
func Swap(prev *domain.AssignmentResult, pairs []SwapPair) (*domain.AssignmentResult, error) {
	res := prev.Clone()
	touched := make(map[int]bool)

	for _, pair := range pairs {
		ta, ia, err := locate(res, pair[0])
		if err != nil {
			return nil, err
		}
		tb, ib, err := locate(res, pair[1])
		if err != nil {
			return nil, err
		}
		if ta == tb {
			// 同一队伍内交换不改变任何东西
			continue
		}

		a := res.Teams[ta].Members[ia]
		b := res.Teams[tb].Members[ib]

		res.Teams[ta].Members[ia] = b
		res.Teams[tb].Members[ib] = a

		// 按参与运算的数值中最多的小数位取整，消除浮点误差，重复交换能精确还原
		d := maxDecimals(res.Teams[ta].TotalScore, res.Teams[tb].TotalScore, a.Score, b.Score)
		res.Teams[ta].TotalScore = roundTo(res.Teams[ta].TotalScore+b.Score-a.Score, d)
		res.Teams[tb].TotalScore = roundTo(res.Teams[tb].TotalScore+a.Score-b.Score, d)

		touched[ta] = true
		touched[tb] = true
	}

	for i := range touched {
		sortMembers(res.Teams[i].Members)
	}

	return res, nil
}

// Revise 在 prev 上应用交换信息，并在参数中记录原始结果和交换信息
func Revise(prev *domain.AssignmentResult, swapInfo, originalRef string) (*domain.AssignmentResult, error) {
	pairs, err := ParseSwapInfo(swapInfo)
	if err != nil {
		return nil, err
	}

	res, err := Swap(prev, pairs)
	if err != nil {
		return nil, err
	}

	res.Parameters.OriginalData = originalRef
	res.Parameters.SwapInfo = swapInfo
	return res, nil
}

func locate(res *domain.AssignmentResult, name string) (int, int, error) {
	for ti, team := range res.Teams {
		for mi, member := range team.Members {
			if member.Name == name {
				return ti, mi, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("%w: %s", domain.ErrUnknownMember, name)
}
