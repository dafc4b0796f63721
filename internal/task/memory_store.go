package task

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "NewsCrew/internal/errors"
)

// MemoryStore 以内存方式保存任务状态，适用于单实例部署与测试。
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task), now: time.Now}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, task *Task) error {
	if task == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "task 不能为空")
	}
	if task.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "任务 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; ok {
		return ErrTaskConflict
	}
	now := m.now().Unix()
	if task.CreatedAt == 0 {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = StatusPending
	}
	m.tasks[task.ID] = cloneTask(task)
	return nil
}

// Get 返回任务。
func (m *MemoryStore) Get(_ context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// Claim 将待执行任务标记为运行中，并增加尝试次数。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	switch task.Status {
	case StatusSucceeded:
		return cloneTask(task), ErrTaskCompleted
	case StatusRunning:
		return cloneTask(task), ErrTaskConflict
	case StatusFailed:
		return cloneTask(task), ErrTaskExhausted
	}
	if task.Attempts >= task.MaxRetries {
		return cloneTask(task), ErrTaskExhausted
	}
	task.Status = StatusRunning
	task.Attempts++
	task.UpdatedAt = m.now().Unix()
	return cloneTask(task), nil
}

// MarkSucceeded 记录成功结果。
func (m *MemoryStore) MarkSucceeded(_ context.Context, id string, result ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = StatusSucceeded
	task.Result = cloneResult(&result)
	task.LastError = ""
	task.ErrorCode = ""
	task.UpdatedAt = m.now().Unix()
	return nil
}

// MarkFailed 记录失败。terminal 为 false 时任务回到 pending 等待重试。
func (m *MemoryStore) MarkFailed(_ context.Context, id string, code xerrors.Code, lastError string, terminal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = StatusPending
	if terminal {
		task.Status = StatusFailed
	}
	task.LastError = lastError
	task.ErrorCode = string(code)
	task.UpdatedAt = m.now().Unix()
	return nil
}

// List 返回符合过滤条件的任务。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		if !matchesListFilters(task, opts) {
			continue
		}
		results = append(results, cloneTask(task))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if opts.Order == SortByUpdatedAsc {
			a, b = b, a
		}
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID > b.ID
	})

	if opts.Offset >= len(results) {
		return []*Task{}, nil
	}
	results = results[opts.Offset:]
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的任务数量与更新时间范围。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (TaskStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := TaskStats{}
	for _, task := range m.tasks {
		if !matchesListFilters(task, opts) {
			continue
		}
		stats.add(task)
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func matchesListFilters(task *Task, opts ListOptions) bool {
	if len(opts.Statuses) > 0 && !containsStatus(opts.Statuses, task.Status) {
		return false
	}
	if len(opts.Kinds) > 0 && !containsKind(opts.Kinds, task.Kind) {
		return false
	}
	if opts.UpdatedGTE > 0 && task.UpdatedAt < opts.UpdatedGTE {
		return false
	}
	if opts.UpdatedLTE > 0 && task.UpdatedAt > opts.UpdatedLTE {
		return false
	}
	if opts.HasResult != nil && !task.Result.Empty() != *opts.HasResult {
		return false
	}
	if opts.Query != "" {
		q := strings.ToLower(opts.Query)
		if !strings.Contains(strings.ToLower(task.ID), q) &&
			!strings.Contains(strings.ToLower(task.Subject), q) &&
			!strings.Contains(strings.ToLower(task.LastError), q) {
			return false
		}
	}
	return true
}

func containsStatus(values []Status, target Status) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func containsKind(values []Kind, target Kind) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

var _ Store = (*MemoryStore)(nil)
