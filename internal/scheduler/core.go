package scheduler

import (
	"math/rand"
	"slices"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// InfeasiblePenalty 是某个队伍人数不足时的适应度，大于任何合法分配的得分
	InfeasiblePenalty = 1000.0
	// 最高分方差的权重是调出来的经验值
	maxVarianceWeight = 0.7
)

// randomInitGenome 随机初始化一个基因组，被固定的选手直接放入指定队伍
func (s *Scheduler) randomInitGenome() *Genome {
	genes := make([]int, s.roster.Size())
	for i := range genes {
		genes[i] = s.rng.Intn(s.roster.NumTeams())
	}
	for i := range genes {
		if team, ok := s.roster.FixedAt(i); ok {
			genes[i] = team
		}
	}
	return &Genome{Genes: genes}
}

// mutate 以 GeneMutateRate 的概率重新抽取每个未固定选手的队伍，固定的选手不会被访问到
func (s *Scheduler) mutate(g *Genome) {
	for i := range g.Genes {
		if _, ok := s.roster.FixedAt(i); ok {
			continue
		}
		if s.rng.Float64() < s.parameters.GeneMutateRate {
			g.Genes[i] = s.rng.Intn(s.roster.NumTeams())
		}
	}
}

// restoreFixed 把固定选手写回指定队伍，交叉之后、评估之前调用
func (s *Scheduler) restoreFixed(g *Genome) {
	for i := range g.Genes {
		if team, ok := s.roster.FixedAt(i); ok {
			g.Genes[i] = team
		}
	}
}

// twoPointCrossover 两点交叉：交换 [cx1, cx2) 区间内的基因
func twoPointCrossover(rng *rand.Rand, a, b []int) {
	size := min(len(a), len(b))
	if size < 2 {
		return
	}

	cx1 := rng.Intn(size) + 1   // [1, size]
	cx2 := rng.Intn(size-1) + 1 // [1, size-1]
	if cx2 >= cx1 {
		cx2++
	} else {
		cx1, cx2 = cx2, cx1
	}

	for i := cx1; i < cx2; i++ {
		a[i], b[i] = b[i], a[i]
	}
}

// tournamentSelect 有放回地随机抽取 k 个个体，返回其中适应度最小者的拷贝
// 适应度相同时保留先抽到的个体
func tournamentSelect(rng *rand.Rand, pop []*Genome, k int) *Genome {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < k; i++ {
		cand := pop[rng.Intn(len(pop))]
		if cand.Fitness < best.Fitness {
			best = cand
		}
	}
	return best.Clone()
}

func (s *Scheduler) selectByTournament(pop []*Genome, n int) []*Genome {
	selected := make([]*Genome, n)
	for i := range selected {
		selected[i] = tournamentSelect(s.rng, pop, s.parameters.TournamentSize)
	}
	return selected
}

/**
 * 计算基因组的适应度（越小越好）
 * fitness = avgBalance + maxBalance + avgVariance + 0.7 * maxVariance
 * 其中:
 * 		1. avgBalance / maxBalance 为各队平均分总和、最高分总和的极差
 * 		2. avgVariance / maxVariance 为对应总和的总体方差（除以队伍数量）
 * 		3. 如果人数最少的队伍少于 floor(选手数 / 队伍数)，直接返回 InfeasiblePenalty
 */
func Evaluate(genes []int, numTeams int, players []domain.Player) float64 {
	teamCounts := make([]int, numTeams)
	teamAvgSums := make([]float64, numTeams)
	teamMaxSums := make([]float64, numTeams)

	for i, team := range genes {
		teamCounts[team]++
		teamAvgSums[team] += players[i].Avg
		teamMaxSums[team] += players[i].Max
	}

	if slices.Min(teamCounts) < len(players)/numTeams {
		return InfeasiblePenalty
	}

	avgBalance := floats.Max(teamAvgSums) - floats.Min(teamAvgSums)
	maxBalance := floats.Max(teamMaxSums) - floats.Min(teamMaxSums)
	avgVariance := stat.PopVariance(teamAvgSums, nil)
	maxVariance := stat.PopVariance(teamMaxSums, nil)

	return avgBalance + maxBalance + avgVariance + maxVarianceWeight*maxVariance
}
