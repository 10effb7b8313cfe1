package metrics

import "github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"

// NopMetrics 丢弃所有指标，用于测试或关闭指标时
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) RecordTaskStarted() {}

func (n *NopMetrics) RecordTaskFinished(_ /* status */ domain.TaskStatus, _ /* seconds */ float64) {}

func (n *NopMetrics) RecordGeneration(_ /* seconds */ float64) {}

func (n *NopMetrics) RecordBestFitness(_ /* fitness */ float64) {}

func (n *NopMetrics) RecordRevision(_ /* success */ bool) {}
