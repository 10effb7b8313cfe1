package domain

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCancelled TaskStatus = "cancelled"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskSnapshot 是某一时刻任务状态的只读拷贝
type TaskSnapshot struct {
	ID               string     `json:"uuid"`
	Status           TaskStatus `json:"status"`
	Progress         float64    `json:"progress"`
	RemainingSeconds int        `json:"remainingTime"`
	ResultPath       string     `json:"resultPath,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// Terminal 表示任务已经结束，不会再有状态变化
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCancelled, TaskCompleted, TaskFailed:
		return true
	default:
		return false
	}
}

// Finished 以状态为准：最后一代跑完时进度已经是 100，但结果可能还在保存
func (s TaskSnapshot) Finished() bool {
	return s.Status.Terminal()
}
