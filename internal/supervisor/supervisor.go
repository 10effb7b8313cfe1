package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/result"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/roster"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/scheduler"
)

var ErrShuttingDown = errors.New("服务正在关闭，不再接受新的任务")

// ResultStore 保存分组结果，返回的引用可以再交给 Load 读取；保存永远不会覆盖已有的结果
type ResultStore interface {
	Save(ctx context.Context, jobID string, res *domain.AssignmentResult) (string, error)
	Load(ctx context.Context, ref string) (*domain.AssignmentResult, error)
}

// Lease 用于在多个实例之间互斥地启动同一个任务
type Lease interface {
	Acquire(jobID string) (bool, error)
	Release(jobID string) error
}

// Notifier 在任务结束后发送通知
type Notifier interface {
	NotifyCompleted(data domain.AssignmentCompletedMailData) error
}

type Options struct {
	// 遗传算法参数模板，MaxGenerations 会被每个任务的代数覆盖
	Parameters     scheduler.Parameters
	MaxGenerations int
	SaveTimeout    time.Duration

	Store    ResultStore
	Lease    Lease    // 可选
	Notifier Notifier // 可选
	Metrics  metrics.Collector
}

type Supervisor struct {
	opts  Options
	tasks *xsync.Map[string, *taskState]

	// start 需要先检查再写入，用一把锁串行化
	startMu sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

func New(opts Options) (*Supervisor, error) {
	if opts.Store == nil {
		return nil, errors.New("缺少结果存储")
	}
	if opts.Lease == nil {
		opts.Lease = nopLease{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 30 * time.Second
	}

	return &Supervisor{
		opts:  opts,
		tasks: xsync.NewMap[string, *taskState](),
	}, nil
}

// Start 异步启动一个分组任务
// 同一个 jobID 的任务尚未结束时返回 domain.ErrJobAlreadyRunning
func (s *Supervisor) Start(jobID string, numTeams, generations int, rosterPath string) error {
	if jobID == "" {
		return errors.New("任务 ID 不能为空")
	}
	if generations < 1 {
		return fmt.Errorf("迭代次数至少为 1，当前为 %d", generations)
	}
	if s.opts.MaxGenerations > 0 && generations > s.opts.MaxGenerations {
		return fmt.Errorf("迭代次数不能超过 %d，当前为 %d", s.opts.MaxGenerations, generations)
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.closed {
		return ErrShuttingDown
	}

	if prev, ok := s.tasks.Load(jobID); ok && !prev.finished() {
		return domain.ErrJobAlreadyRunning
	}

	acquired, err := s.opts.Lease.Acquire(jobID)
	if err != nil {
		return fmt.Errorf("无法获取任务锁: %w", err)
	}
	if !acquired {
		return domain.ErrJobAlreadyRunning
	}

	task := newTaskState(jobID, numTeams, generations, rosterPath, s.opts.Metrics)
	s.tasks.Store(jobID, task)

	s.wg.Add(1)
	go s.run(task)

	slog.Info("已启动分组任务", "task", jobID, "numTeams", numTeams, "generations", generations, "roster", rosterPath)
	return nil
}

func (s *Supervisor) run(task *taskState) {
	defer s.wg.Done()
	defer close(task.done)

	task.setStatus(domain.TaskRunning)
	s.opts.Metrics.RecordTaskStarted()

	status, ref, err := s.execute(task)

	// 先释放锁再标记结束，保证任务一旦可以被重新启动，锁就已经空闲
	if err := s.opts.Lease.Release(task.id); err != nil {
		slog.Error("无法释放任务锁", "task", task.id, "error", err)
	}
	task.finish(status, ref, err)

	runTime := time.Since(task.startedAt).Seconds()
	s.opts.Metrics.RecordTaskFinished(status, runTime)

	if err != nil {
		slog.Error("分组任务失败", "task", task.id, "error", err)
	} else {
		slog.Info("分组任务已结束", "task", task.id, "status", status, "result", ref, "duration", time.Since(task.startedAt))
	}

	data := domain.AssignmentCompletedMailData{
		TaskID:      task.id,
		Status:      status,
		ResultPath:  ref,
		NumTeams:    task.numTeams,
		Generations: task.generations,
		RunTime:     runTime,
	}
	if err != nil {
		data.Error = err.Error()
	}
	if err := s.opts.Notifier.NotifyCompleted(data); err != nil {
		slog.Error("无法发送任务完成通知", "task", task.id, "error", err)
	}
}

// execute 运行遗传算法并保存最佳结果
// 被取消时如果已经跑完至少一代，仍然保存目前为止最好的结果
func (s *Supervisor) execute(task *taskState) (domain.TaskStatus, string, error) {
	r, err := roster.LoadRoster(task.rosterPath, task.numTeams)
	if err != nil {
		return domain.TaskFailed, "", err
	}

	params := s.opts.Parameters
	params.MaxGenerations = task.generations

	sch, err := scheduler.New(&params, r)
	if err != nil {
		return domain.TaskFailed, "", err
	}

	outcome, err := sch.Run(task)
	if err != nil {
		return domain.TaskFailed, "", err
	}

	status := domain.TaskCompleted
	if outcome.Cancelled {
		status = domain.TaskCancelled
	}
	if outcome.Best == nil {
		return status, "", nil
	}
	s.opts.Metrics.RecordBestFitness(outcome.Best.Fitness)

	res, err := result.Build(outcome.Best.Genes, r, domain.ResultParameters{
		NumTeams: task.numTeams,
		Repeat:   task.generations,
		DataPath: task.rosterPath,
		RunTime:  time.Since(task.startedAt).Seconds(),
	})
	if err != nil {
		return domain.TaskFailed, "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
	defer cancel()

	ref, err := s.opts.Store.Save(ctx, task.id, res)
	if err != nil {
		return domain.TaskFailed, "", fmt.Errorf("无法保存分组结果: %w", err)
	}

	return status, ref, nil
}

func (s *Supervisor) lookup(jobID string) (*taskState, error) {
	task, ok := s.tasks.Load(jobID)
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return task, nil
}

// Poll 返回任务当前的进度快照
func (s *Supervisor) Poll(jobID string) (domain.TaskSnapshot, error) {
	task, err := s.lookup(jobID)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}
	return task.snapshot(), nil
}

// Cancel 设置取消标记，任务会在下一代开始前停止；重复调用或任务已结束时什么也不做
func (s *Supervisor) Cancel(jobID string) error {
	task, err := s.lookup(jobID)
	if err != nil {
		return err
	}
	if task.finished() {
		return nil
	}
	if !task.cancelled.Swap(true) {
		slog.Info("已请求取消任务", "task", jobID)
	}
	return nil
}

// Result 返回任务快照，结果生成后 ResultPath 非空
func (s *Supervisor) Result(jobID string) (domain.TaskSnapshot, error) {
	return s.Poll(jobID)
}

// LoadResult 读取任务最新的分组结果
func (s *Supervisor) LoadResult(ctx context.Context, jobID string) (*domain.AssignmentResult, error) {
	task, err := s.lookup(jobID)
	if err != nil {
		return nil, err
	}

	snap := task.snapshot()
	if !snap.Finished() || snap.ResultPath == "" {
		return nil, domain.ErrResultNotReady
	}

	return s.opts.Store.Load(ctx, snap.ResultPath)
}

// Revise 在任务最新的结果上交换成员，保存为新的结果并返回更新后的快照
func (s *Supervisor) Revise(ctx context.Context, jobID, swapInfo string) (domain.TaskSnapshot, error) {
	task, err := s.lookup(jobID)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}

	task.reviseMu.Lock()
	defer task.reviseMu.Unlock()

	ref, err := s.revise(ctx, task, swapInfo)
	s.opts.Metrics.RecordRevision(err == nil)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}

	task.setResultRef(ref)
	slog.Info("已交换成员", "task", jobID, "swap", swapInfo, "result", ref)

	return task.snapshot(), nil
}

func (s *Supervisor) revise(ctx context.Context, task *taskState, swapInfo string) (string, error) {
	snap := task.snapshot()
	if !snap.Finished() || snap.ResultPath == "" {
		return "", domain.ErrResultNotReady
	}

	prev, err := s.opts.Store.Load(ctx, snap.ResultPath)
	if err != nil {
		return "", err
	}

	revised, err := result.Revise(prev, swapInfo, snap.ResultPath)
	if err != nil {
		return "", err
	}

	return s.opts.Store.Save(ctx, task.id, revised)
}

// Wait 阻塞直到任务结束或 ctx 被取消
func (s *Supervisor) Wait(ctx context.Context, jobID string) (domain.TaskSnapshot, error) {
	task, err := s.lookup(jobID)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}

	select {
	case <-task.done:
		return task.snapshot(), nil
	case <-ctx.Done():
		return task.snapshot(), ctx.Err()
	}
}

// Snapshots 返回所有任务的快照，顺序不固定
func (s *Supervisor) Snapshots() []domain.TaskSnapshot {
	snaps := make([]domain.TaskSnapshot, 0, s.tasks.Size())
	s.tasks.Range(func(_ string, task *taskState) bool {
		snaps = append(snaps, task.snapshot())
		return true
	})
	return snaps
}

// Shutdown 拒绝新的任务，取消所有正在运行的任务并等待它们结束
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.startMu.Lock()
	s.closed = true
	s.startMu.Unlock()

	s.tasks.Range(func(_ string, task *taskState) bool {
		task.cancelled.Store(true)
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopLease struct{}

func (nopLease) Acquire(string) (bool, error) { return true, nil }
func (nopLease) Release(string) error         { return nil }

type nopNotifier struct{}

func (nopNotifier) NotifyCompleted(domain.AssignmentCompletedMailData) error { return nil }
