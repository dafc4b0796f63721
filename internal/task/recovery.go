package task

import "context"

// RecoveryHandler 定义了在任务执行失败且不可重试时的降级策略。
type RecoveryHandler interface {
	// Recover 返回的结果会作为降级结果写入任务；返回 nil 则按失败流程处理。
	Recover(ctx context.Context, task *Task, cause error) (*ExecutionResult, error)
}

// RecoveryFunc 让普通函数满足 RecoveryHandler 接口。
type RecoveryFunc func(ctx context.Context, task *Task, cause error) (*ExecutionResult, error)

// Recover 实现 RecoveryHandler。
func (f RecoveryFunc) Recover(ctx context.Context, task *Task, cause error) (*ExecutionResult, error) {
	return f(ctx, task, cause)
}
