package domain

import "errors"

var (
	ErrJobAlreadyRunning = errors.New("已有任务正在运行，请等待其完成或先取消")
	ErrJobNotFound       = errors.New("任务不存在")
	ErrUnknownMember     = errors.New("成员不存在于任何队伍中")
	ErrResultNotReady    = errors.New("任务结果尚未生成")
)

// MalformedRosterError 表示名单本身的数据有问题（缺少字段、固定分配越界等）
type MalformedRosterError struct {
	Reason string
}

func (e *MalformedRosterError) Error() string {
	return "名单格式错误: " + e.Reason
}

// InfeasibleConfigurationError 表示名单和队伍数量的组合不存在任何合法的分配
type InfeasibleConfigurationError struct {
	Reason string
}

func (e *InfeasibleConfigurationError) Error() string {
	return "无法满足的分组配置: " + e.Reason
}
