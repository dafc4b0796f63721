package storage

import (
	"context"
	"encoding/json"

	xerrors "NewsCrew/internal/errors"
)

// Record 是一次内容生产结果的归档。
type Record struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Subject   string          `json:"subject"`
	Article   string          `json:"article,omitempty"`
	Posts     json.RawMessage `json:"posts,omitempty"`
	Digest    string          `json:"digest,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

// Repository 抽象归档记录的持久化接口。
type Repository interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	ListLatest(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// 查询列表时的默认与最大条数。
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// ErrRecordNotFound 表示归档记录不存在。
var ErrRecordNotFound = xerrors.New(xerrors.CodeNotFound, "archive record not found")

// NormalizeLimit 将 limit 限制在 [1, MaxListLimit] 区间。
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// Validate 检查记录的必填字段。
func Validate(record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record 不能为空")
	}
	if record.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录 ID 不能为空")
	}
	if record.Kind == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录类型不能为空")
	}
	return nil
}
