package pythonbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"NewsCrew/internal/embedding"
	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
)

const providerName = "python_bridge"

// Client 通过调用 Python 脚本（sentence-transformers）计算向量。
// 脚本从 stdin 读取 {"model": ..., "texts": [...]}，向 stdout 写出 {"vectors": [[...]]}。
type Client struct {
	pythonExec string
	scriptPath string
	workingDir string
	model      string
	dimension  int
}

// NewClient 创建 Python Bridge 客户端。
func NewClient(pythonExec, scriptPath, workingDir, model string, dimension int) (*Client, error) {
	if scriptPath == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未指定 Python 脚本路径")
	}
	if pythonExec == "" {
		pythonExec = "python3"
	}
	return &Client{
		pythonExec: pythonExec,
		scriptPath: ResolveScriptPath(workingDir, scriptPath),
		workingDir: workingDir,
		model:      model,
		dimension:  dimension,
	}, nil
}

// Dimension 返回向量维度。
func (c *Client) Dimension() int { return c.dimension }

// Embed 调用外部脚本，并解析输出。
func (c *Client) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	if len(texts) == 0 {
		return nil, nil
	}
	started := time.Now()
	defer func() { metrics.ObserveUpstream(providerName, "embed", started, err) }()

	encoded, err := json.Marshal(map[string]any{
		"model": c.model,
		"texts": texts,
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化请求失败")
	}

	command := exec.CommandContext(ctx, c.pythonExec, c.scriptPath)
	if c.workingDir != "" {
		command.Dir = c.workingDir
	}
	command.Stdin = bytes.NewReader(encoded)

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, xerrors.WrapUpstream(providerName, ctx.Err())
		}
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err,
			fmt.Sprintf("执行 Python 脚本失败, stderr=%s", strings.TrimSpace(stderr.String())))
	}

	var resp struct {
		Vectors [][]float32 `json:"vectors"`
		Error   string      `json:"error"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "解析 Python 输出失败")
	}
	if resp.Error != "" {
		return nil, xerrors.New(xerrors.CodeExecutorFailure, "Python 脚本返回错误: "+resp.Error)
	}
	if err := embedding.CheckResult(providerName, len(texts), resp.Vectors, c.dimension); err != nil {
		return nil, err
	}
	return resp.Vectors, nil
}

// ResolveScriptPath 根据工作目录推导脚本绝对路径。
func ResolveScriptPath(baseDir, script string) string {
	if script == "" {
		return ""
	}
	if filepath.IsAbs(script) {
		return script
	}
	if baseDir == "" {
		return script
	}
	return filepath.Join(baseDir, script)
}

var _ embedding.Embedder = (*Client)(nil)
