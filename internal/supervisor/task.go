package supervisor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/scheduler"
)

// taskState 是任务表中的一项
// cancelled 可以被任何调用方设置，其余字段只由任务自己的 goroutine 写入，读写都经过 mu
type taskState struct {
	id          string
	numTeams    int
	generations int
	rosterPath  string
	startedAt   time.Time

	cancelled atomic.Bool
	done      chan struct{}

	// 同一个任务的交换请求串行执行，避免两次交换基于同一个旧结果
	reviseMu sync.Mutex

	mu          sync.RWMutex
	status      domain.TaskStatus
	progress    float64
	remaining   int
	resultRef   string
	err         string
	bestFitness float64

	metrics metrics.Collector
}

var _ scheduler.Tracker = (*taskState)(nil)

func newTaskState(id string, numTeams, generations int, rosterPath string, m metrics.Collector) *taskState {
	return &taskState{
		id:          id,
		numTeams:    numTeams,
		generations: generations,
		rosterPath:  rosterPath,
		startedAt:   time.Now(),
		done:        make(chan struct{}),
		status:      domain.TaskPending,
		metrics:     m,
	}
}

func (t *taskState) Cancelled() bool {
	return t.cancelled.Load()
}

// Checkpoint 在每一代结束时由遗传算法调用
func (t *taskState) Checkpoint(cp scheduler.Checkpoint) {
	progress := float64(cp.Generation+1) / float64(cp.Total) * 100
	remaining := int(cp.Duration.Seconds() * float64(cp.Total-cp.Generation-1))

	t.mu.Lock()
	if progress > t.progress {
		t.progress = progress
	}
	if remaining < 0 {
		remaining = 0
	}
	t.remaining = remaining
	t.bestFitness = cp.BestFitness
	t.mu.Unlock()

	t.metrics.RecordGeneration(cp.Duration.Seconds())
}

func (t *taskState) setStatus(status domain.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

// finish 把任务标记为结束：进度置为 100，剩余时间置为 0
func (t *taskState) finish(status domain.TaskStatus, resultRef string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = status
	t.progress = 100
	t.remaining = 0
	t.resultRef = resultRef
	if err != nil {
		t.err = err.Error()
	}
}

func (t *taskState) setResultRef(ref string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resultRef = ref
}

func (t *taskState) finished() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Terminal()
}

func (t *taskState) snapshot() domain.TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return domain.TaskSnapshot{
		ID:               t.id,
		Status:           t.status,
		Progress:         t.progress,
		RemainingSeconds: t.remaining,
		ResultPath:       t.resultRef,
		Error:            t.err,
	}
}
