package vectorstore

import (
	"context"
	"fmt"
	"strings"

	xerrors "NewsCrew/internal/errors"
)

// Vector 是写入向量库的一条记录。
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match 是相似度检索的单条结果，Score 越大越相似。
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Query 控制检索行为。
type Query struct {
	TopK            int
	IncludeMetadata bool
	Namespace       string
}

// Store 抽象了向量数据库的基本能力。
type Store interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	Fetch(ctx context.Context, namespace string, ids []string) (map[string]Vector, error)
	Query(ctx context.Context, vector []float32, q Query) ([]Match, error)
	Delete(ctx context.Context, namespace string, ids []string) error
}

// ValidateVectors 检查 ID 与维度。dimension 为 0 时只检查非空。
func ValidateVectors(vectors []Vector, dimension int) error {
	for idx, v := range vectors {
		if strings.TrimSpace(v.ID) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 个向量缺少 ID", idx))
		}
		if err := ValidateDimension(v.Values, dimension); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDimension 检查单个向量的维度。
func ValidateDimension(values []float32, dimension int) error {
	if len(values) == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "向量不能为空")
	}
	if dimension > 0 && len(values) != dimension {
		return xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("向量维度为 %d，期望 %d", len(values), dimension))
	}
	return nil
}

// MetadataString 读取 metadata 中的字符串字段。
func MetadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	switch v := metadata[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
