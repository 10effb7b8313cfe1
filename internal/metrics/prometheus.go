package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

// PrometheusCollector 把指标注册到 prometheus，第一次记录时才注册
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	tasksStarted       prometheus.Counter
	tasksFinished      *prometheus.CounterVec
	tasksActive        prometheus.Gauge
	taskDuration       prometheus.Histogram
	generationDuration prometheus.Histogram
	bestFitness        prometheus.Histogram
	revisions          *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus 创建 prometheus 指标收集器，reg 为 nil 时使用默认的 registerer
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "team_balancer"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.tasksStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "task",
			Name:      "started_total",
			Help:      "已启动的分组任务数量",
		})
		p.tasksFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "task",
			Name:      "finished_total",
			Help:      "按最终状态统计的已结束任务数量",
		}, []string{"status"})
		p.tasksActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "task",
			Name:      "active",
			Help:      "正在运行的任务数量",
		})
		p.taskDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "task",
			Name:      "duration_seconds",
			Help:      "任务从启动到结束的耗时",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s .. ~17min
		})
		p.generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "evolution",
			Name:      "generation_duration_seconds",
			Help:      "每一代（繁殖、评估、选择）的耗时",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		})
		p.bestFitness = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "evolution",
			Name:      "best_fitness",
			Help:      "任务结束时最佳个体的适应度",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		})
		p.revisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "result",
			Name:      "revisions_total",
			Help:      "交换成员的次数（success|failure）",
		}, []string{"result"})

		p.reg.MustRegister(p.tasksStarted)
		p.reg.MustRegister(p.tasksFinished)
		p.reg.MustRegister(p.tasksActive)
		p.reg.MustRegister(p.taskDuration)
		p.reg.MustRegister(p.generationDuration)
		p.reg.MustRegister(p.bestFitness)
		p.reg.MustRegister(p.revisions)
	})
}

func (p *PrometheusCollector) RecordTaskStarted() {
	p.ensureRegistered()
	p.tasksStarted.Inc()
	p.tasksActive.Inc()
}

func (p *PrometheusCollector) RecordTaskFinished(status domain.TaskStatus, seconds float64) {
	p.ensureRegistered()
	p.tasksActive.Dec()
	p.tasksFinished.WithLabelValues(string(status)).Inc()
	p.taskDuration.Observe(seconds)
}

func (p *PrometheusCollector) RecordGeneration(seconds float64) {
	p.ensureRegistered()
	p.generationDuration.Observe(seconds)
}

func (p *PrometheusCollector) RecordBestFitness(fitness float64) {
	p.ensureRegistered()
	p.bestFitness.Observe(fitness)
}

func (p *PrometheusCollector) RecordRevision(success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.revisions.WithLabelValues(result).Inc()
}
