package metrics

import "github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"

// Collector 收集任务管理器运行时的指标
type Collector interface {
	RecordTaskStarted()
	RecordTaskFinished(status domain.TaskStatus, seconds float64)
	RecordGeneration(seconds float64)
	RecordBestFitness(fitness float64)
	RecordRevision(success bool)
}
