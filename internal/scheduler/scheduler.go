package scheduler

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/alitto/pond"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/roster"
)

type Scheduler struct {
	parameters *Parameters
	roster     *roster.Roster
	rng        *rand.Rand // 只在运行 Run 的 goroutine 中使用
}

func New(parameters *Parameters, r *roster.Roster) (*Scheduler, error) {
	if err := validateParameters(parameters); err != nil {
		return nil, err
	}

	seed := parameters.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Scheduler{
		parameters: parameters,
		roster:     r,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

func validateParameters(p *Parameters) error {
	switch {
	case p == nil:
		return errors.New("缺少遗传算法参数")
	case p.PopulationSize < 2:
		return fmt.Errorf("种群大小至少为 2，当前为 %d", p.PopulationSize)
	case p.MaxGenerations < 1:
		return fmt.Errorf("迭代次数至少为 1，当前为 %d", p.MaxGenerations)
	case p.CrossoverRate < 0 || p.CrossoverRate > 1:
		return fmt.Errorf("交叉概率必须在 [0, 1] 之间，当前为 %v", p.CrossoverRate)
	case p.MutationRate < 0 || p.MutationRate > 1:
		return fmt.Errorf("变异概率必须在 [0, 1] 之间，当前为 %v", p.MutationRate)
	case p.GeneMutateRate < 0 || p.GeneMutateRate > 1:
		return fmt.Errorf("基因变异概率必须在 [0, 1] 之间，当前为 %v", p.GeneMutateRate)
	case p.TournamentSize < 1:
		return fmt.Errorf("锦标赛规模至少为 1，当前为 %d", p.TournamentSize)
	}
	return nil
}

// Run 执行遗传算法直到达到最大代数或 tracker 报告任务被取消
// 取消只在每一代开始时检查；被取消时仍然返回目前为止最好的基因组
func (s *Scheduler) Run(tracker Tracker) (*Outcome, error) {
	workers := s.parameters.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := pond.New(workers, s.parameters.PopulationSize)
	defer pool.StopAndWait()

	// 生成初始种群
	pop := make([]*Genome, s.parameters.PopulationSize)
	for i := range pop {
		pop[i] = s.randomInitGenome()
	}

	outcome := &Outcome{}
	var bestGenomeEver *Genome

	for gen := 0; gen < s.parameters.MaxGenerations; gen++ {
		if tracker.Cancelled() {
			outcome.Cancelled = true
			break
		}

		genStart := time.Now()

		// 繁殖
		s.vary(pop)

		// 计算适应度，个体之间互不依赖，可以并行
		group := pool.Group()
		for _, g := range pop {
			group.Submit(func() {
				g.Fitness = Evaluate(g.Genes, s.roster.NumTeams(), s.roster.Players())
			})
		}
		group.Wait()

		// 名人堂只保留一个个体，只有严格更优时才替换
		for _, g := range pop {
			if bestGenomeEver == nil || g.Fitness < bestGenomeEver.Fitness {
				bestGenomeEver = g.Clone()
			}
		}

		// 选择
		pop = s.selectByTournament(pop, s.parameters.PopulationSize)

		outcome.Generations = gen + 1
		tracker.Checkpoint(Checkpoint{
			Generation:  gen,
			Total:       s.parameters.MaxGenerations,
			Duration:    time.Since(genStart),
			BestFitness: bestGenomeEver.Fitness,
		})
	}

	if bestGenomeEver != nil {
		// 固定分配由变异和交叉后的修复保证，这里再检查一遍
		if err := s.verifyFixed(bestGenomeEver); err != nil {
			return nil, err
		}
	}
	outcome.Best = bestGenomeEver

	return outcome, nil
}

// vary 对相邻的两个个体按概率做两点交叉，再对每个个体按概率变异
// 种群中的个体来自选择阶段的拷贝，可以原地修改
func (s *Scheduler) vary(pop []*Genome) {
	for i := 1; i < len(pop); i += 2 {
		if s.rng.Float64() < s.parameters.CrossoverRate {
			twoPointCrossover(s.rng, pop[i-1].Genes, pop[i].Genes)
			s.restoreFixed(pop[i-1])
			s.restoreFixed(pop[i])
		}
	}

	for _, g := range pop {
		if s.rng.Float64() < s.parameters.MutationRate {
			s.mutate(g)
		}
	}
}
