package result

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/roster"
)

// Build 把最佳基因组整理成按队伍分组的结果，成员按分数从高到低排列
func Build(genes []int, r *roster.Roster, params domain.ResultParameters) (*domain.AssignmentResult, error) {
	if len(genes) != r.Size() {
		return nil, fmt.Errorf("基因长度 %d 和名单人数 %d 不一致", len(genes), r.Size())
	}

	teams := make([]domain.Team, r.NumTeams())
	sums := make([]float64, r.NumTeams())
	for i := range teams {
		teams[i] = domain.Team{
			Label:   TeamLabel(i),
			Members: []domain.TeamMember{},
		}
	}

	for i, team := range genes {
		if team < 0 || team >= r.NumTeams() {
			return nil, fmt.Errorf("第 %d 个基因的队伍 %d 超出范围", i, team)
		}
		p := r.Player(i)
		teams[team].Members = append(teams[team].Members, domain.TeamMember{Name: p.Name, Score: round1(p.Avg)})
		sums[team] += p.Avg
	}

	for i := range teams {
		teams[i].TotalScore = round1(sums[i])
		sortMembers(teams[i].Members)
	}

	return &domain.AssignmentResult{Parameters: params, Teams: teams}, nil
}

func TeamLabel(i int) string {
	return fmt.Sprintf("Team %d", i+1)
}

// sortMembers 按分数降序排列，分数相同时按名字升序，保证排列顺序只取决于成员集合
func sortMembers(members []domain.TeamMember) {
	slices.SortStableFunc(members, func(a, b domain.TeamMember) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// round1 保留一位小数，生成的结果中的分数都是这个精度
func round1(x float64) float64 {
	return roundTo(x, 1)
}

// 超过这个小数位数的分数不再取整，直接使用浮点运算的结果
const maxPrecision = 6

// roundTo 保留 d 位小数，d < 0 时原样返回
func roundTo(x float64, d int) float64 {
	if d < 0 {
		return x
	}
	scale := math.Pow10(d)
	return math.Round(x*scale) / scale
}

// maxDecimals 返回 xs 中小数位数的最大值，有任何一个超过 maxPrecision 时返回 -1
func maxDecimals(xs ...float64) int {
	d := 0
	for _, x := range xs {
		n := decimals(x)
		if n < 0 {
			return -1
		}
		d = max(d, n)
	}
	return d
}

func decimals(x float64) int {
	for d := 0; d <= maxPrecision; d++ {
		if roundTo(x, d) == x {
			return d
		}
	}
	return -1
}
