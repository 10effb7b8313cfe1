package scheduler

import (
	"slices"
	"time"
)

// Genome: 一个候选分组方案，Genes[i] 为名单中第 i 名选手所在的队伍
type Genome struct {
	Genes   []int
	Fitness float64 // 越小越好
}

func (g *Genome) Clone() *Genome {
	return &Genome{
		Genes:   slices.Clone(g.Genes),
		Fitness: g.Fitness,
	}
}

// 遗传算法参数
type Parameters struct {
	PopulationSize int     // 种群大小
	MaxGenerations int     // 最大迭代次数
	CrossoverRate  float64 // 每一对个体的交叉概率
	MutationRate   float64 // 个体变异概率
	GeneMutateRate float64 // 变异时每个基因被重新抽取的概率
	TournamentSize int     // 锦标赛选择的规模
	Workers        int     // 并行计算适应度的 worker 数量，0 表示使用 CPU 核数
	Seed           int64   // 随机种子，0 表示使用当前时间
}

func DefaultParameters(generations int) *Parameters {
	return &Parameters{
		PopulationSize: 300,
		MaxGenerations: generations,
		CrossoverRate:  0.5,
		MutationRate:   0.2,
		GeneMutateRate: 0.2,
		TournamentSize: 3,
	}
}

// Checkpoint 是每一代结束时汇报给任务管理器的信息
type Checkpoint struct {
	Generation  int           // 从 0 开始
	Total       int           // 总代数
	Duration    time.Duration // 本代耗时
	BestFitness float64       // 目前为止的最佳适应度
}

// Tracker 由任务管理器实现：每一代开始前检查取消标记，每一代结束后记录进度
type Tracker interface {
	Cancelled() bool
	Checkpoint(cp Checkpoint)
}

// Outcome 是一次运行的结果，Best 在一代都没有跑完时为 nil
type Outcome struct {
	Best        *Genome
	Generations int // 实际完成的代数
	Cancelled   bool
}
