package task

import (
	stdErrors "errors"
	"strings"

	xerrors "NewsCrew/internal/errors"
)

// Status 表示任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Kind 表示任务类型。
type Kind string

const (
	KindNewsDigest  Kind = "news_digest"
	KindContentPack Kind = "content_pack"
	KindPost        Kind = "post"
)

// Request 描述一次异步任务提交。
type Request struct {
	ID      string            `json:"id,omitempty"`
	Kind    Kind              `json:"kind"`
	Subject string            `json:"subject"`
	Input   map[string]string `json:"input,omitempty"`
}

// Post 是任务产出的一条社交平台帖子。
type Post struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
}

// ExecutionResult 保存一次任务执行的结果。
type ExecutionResult struct {
	Output    string `json:"output,omitempty"`
	Article   string `json:"article,omitempty"`
	Posts     []Post `json:"posts,omitempty"`
	ArchiveID string `json:"archive_id,omitempty"`
	// Degraded 表示结果来自降级处理。
	Degraded string `json:"degraded,omitempty"`
}

// Empty 判断结果是否不含任何内容。
func (r *ExecutionResult) Empty() bool {
	return r == nil || (r.Output == "" && r.Article == "" && len(r.Posts) == 0)
}

// Task 描述了排队执行的内容生产任务。
type Task struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	Subject    string            `json:"subject"`
	Input      map[string]string `json:"input,omitempty"`
	Status     Status            `json:"status"`
	Attempts   int               `json:"attempts"`
	MaxRetries int               `json:"max_retries"`
	LastError  string            `json:"last_error,omitempty"`
	ErrorCode  string            `json:"error_code,omitempty"`
	Result     *ExecutionResult  `json:"result,omitempty"`
	CreatedAt  int64             `json:"created_at"`
	UpdatedAt  int64             `json:"updated_at"`
}

// Request 还原提交时的请求，交给执行器使用。
func (t *Task) Request() Request {
	return Request{ID: t.ID, Kind: t.Kind, Subject: t.Subject, Input: cloneInput(t.Input)}
}

var (
	// ErrTaskNotFound 表示指定的任务不存在。
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "task not found")
	// ErrTaskConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrTaskConflict = xerrors.New(CodeTaskConflict, "task conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrTaskCompleted 表示任务已经成功完成。
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "task already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrTaskExhausted 表示任务已终止或重试次数已经耗尽。
	ErrTaskExhausted = xerrors.New(CodeTaskExhausted, "task retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskExhausted  xerrors.Code = "TASK_RETRIES_EXHAUSTED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
	CodeTaskCompensate xerrors.Code = "TASK_COMPENSATION_FAILED"
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{
		Message:   "task not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskConflict, xerrors.Attributes{
		Message:   "task conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskCompleted, xerrors.Attributes{
		Message:   "task already completed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskExhausted, xerrors.Attributes{
		Message:   "task retries exhausted",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{
		Message:   "task validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{
		Message:   "failed to publish task",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeTaskProcessing, xerrors.Attributes{
		Message:   "task execution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeTaskCompensate, xerrors.Attributes{
		Message:   "task compensation failed",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}

// IsTaskError 判断错误是否为统一任务错误。
func IsTaskError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, ErrTaskNotFound) {
		return target == CodeTaskNotFound
	}
	if stdErrors.Is(err, ErrTaskConflict) {
		return target == CodeTaskConflict
	}
	if stdErrors.Is(err, ErrTaskCompleted) {
		return target == CodeTaskCompleted
	}
	if stdErrors.Is(err, ErrTaskExhausted) {
		return target == CodeTaskExhausted
	}
	return false
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// IsValidKind 检查任务类型是否受支持。
func IsValidKind(kind Kind) bool {
	switch kind {
	case KindNewsDigest, KindContentPack, KindPost:
		return true
	default:
		return false
	}
}

// Validate 校验提交请求。
func (r Request) Validate() error {
	if !IsValidKind(r.Kind) {
		return xerrors.New(CodeTaskValidation, "不支持的任务类型: "+string(r.Kind))
	}
	if strings.TrimSpace(r.Subject) == "" {
		return xerrors.New(CodeTaskValidation, "任务主题不能为空")
	}
	return nil
}

func cloneInput(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	cloned := make(map[string]string, len(input))
	for key, value := range input {
		cloned[key] = value
	}
	return cloned
}

func cloneResult(result *ExecutionResult) *ExecutionResult {
	if result == nil {
		return nil
	}
	clone := *result
	if result.Posts != nil {
		clone.Posts = append([]Post(nil), result.Posts...)
	}
	return &clone
}

func cloneTask(task *Task) *Task {
	clone := *task
	clone.Result = cloneResult(task.Result)
	clone.Input = cloneInput(task.Input)
	return &clone
}
