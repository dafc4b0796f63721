package embedding

import (
	"context"
	"fmt"

	xerrors "NewsCrew/internal/errors"
)

// Embedder 将文本转换为定长向量。
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// One 计算单条文本的向量。
func One(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, fmt.Sprintf("期望 1 个向量，实际得到 %d 个", len(vectors)))
	}
	return vectors[0], nil
}

// CheckResult 校验服务返回的向量数量与维度。dimension 为 0 时不检查维度。
func CheckResult(provider string, inputs int, vectors [][]float32, dimension int) error {
	if len(vectors) != inputs {
		return xerrors.New(xerrors.CodeUpstreamFailure,
			fmt.Sprintf("%s 返回 %d 个向量，输入为 %d 条", provider, len(vectors), inputs),
			xerrors.WithMetadata("provider", provider))
	}
	if dimension <= 0 {
		return nil
	}
	for idx, vec := range vectors {
		if len(vec) != dimension {
			return xerrors.New(xerrors.CodeUpstreamFailure,
				fmt.Sprintf("%s 第 %d 个向量维度为 %d，期望 %d", provider, idx, len(vec), dimension),
				xerrors.WithMetadata("provider", provider))
		}
	}
	return nil
}
