package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
	"NewsCrew/internal/vectorstore"
)

const providerName = "pgvector"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store 基于 PostgreSQL + pgvector 扩展实现向量存储。
type Store struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
}

// Open 建立连接池并确保表结构存在。
func Open(ctx context.Context, dsn, table string, dimension int) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "pgvector DSN 不能为空")
	}
	if !identPattern.MatchString(table) {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("非法的表名 %q", table))
	}
	if dimension <= 0 {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "pgvector 需要指定向量维度")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建 Postgres 连接池失败")
	}
	store := &Store{pool: pool, table: table, dimension: dimension}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close 关闭连接池。
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL,
			namespace TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, id)
		)`, s.table, s.dimension),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 pgvector 表失败")
		}
	}
	return nil
}

// Upsert 在一个批次中写入全部向量。
func (s *Store) Upsert(ctx context.Context, namespace string, vectors []vectorstore.Vector) (err error) {
	if len(vectors) == 0 {
		return nil
	}
	if err := vectorstore.ValidateVectors(vectors, s.dimension); err != nil {
		return err
	}
	started := time.Now()
	defer func() { metrics.ObserveUpstream(providerName, "upsert", started, err) }()

	query := fmt.Sprintf(`INSERT INTO %s (id, namespace, embedding, metadata, updated_at)
		VALUES ($1, $2, $3::vector, $4, now())
		ON CONFLICT (namespace, id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = now()`, s.table)

	batch := &pgx.Batch{}
	for _, v := range vectors {
		meta, err := json.Marshal(orEmpty(v.Metadata))
		if err != nil {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化 metadata 失败")
		}
		batch.Queue(query, v.ID, namespace, Literal(v.Values), string(meta))
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range vectors {
		if _, err := results.Exec(); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入向量失败")
		}
	}
	return nil
}

// Fetch 按 ID 读取向量。
func (s *Store) Fetch(ctx context.Context, namespace string, ids []string) (result map[string]vectorstore.Vector, err error) {
	result = make(map[string]vectorstore.Vector, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	started := time.Now()
	defer func() { metrics.ObserveUpstream(providerName, "fetch", started, err) }()

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, embedding::text, metadata FROM %s WHERE namespace = $1 AND id = ANY($2)`, s.table),
		namespace, ids)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询向量失败")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       string
			literal  string
			metaJSON []byte
		)
		if err := rows.Scan(&id, &literal, &metaJSON); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取向量失败")
		}
		values, err := ParseLiteral(literal)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析向量失败")
		}
		v := vectorstore.Vector{ID: id, Values: values}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &v.Metadata)
		}
		result[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历向量失败")
	}
	return result, nil
}

// Query 使用余弦距离运算符 <=> 排序，分数为 1 - 距离。
func (s *Store) Query(ctx context.Context, vector []float32, q vectorstore.Query) (matches []vectorstore.Match, err error) {
	if err := vectorstore.ValidateDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 1
	}
	started := time.Now()
	defer func() { metrics.ObserveUpstream(providerName, "query", started, err) }()

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, metadata, 1 - (embedding <=> $1::vector) AS score
			FROM %s WHERE namespace = $2
			ORDER BY embedding <=> $1::vector, id
			LIMIT $3`, s.table),
		Literal(vector), q.Namespace, topK)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "检索向量失败")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m        vectorstore.Match
			metaJSON []byte
		)
		if err := rows.Scan(&m.ID, &metaJSON, &m.Score); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取检索结果失败")
		}
		if q.IncludeMetadata && len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &m.Metadata)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历检索结果失败")
	}
	return matches, nil
}

// Delete 删除指定 ID。
func (s *Store) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND id = ANY($2)`, s.table), namespace, ids)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "删除向量失败")
	}
	return nil
}

// Literal 将向量编码为 pgvector 的文本格式，例如 [0.1,0.2]。
func Literal(values []float32) string {
	var b strings.Builder
	b.Grow(len(values) * 8)
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseLiteral 解析 pgvector 的文本格式。
func ParseLiteral(literal string) ([]float32, error) {
	literal = strings.TrimSpace(literal)
	if !strings.HasPrefix(literal, "[") || !strings.HasSuffix(literal, "]") {
		return nil, fmt.Errorf("invalid vector literal %q", literal)
	}
	inner := strings.TrimSpace(literal[1 : len(literal)-1])
	if inner == "" {
		return nil, nil
	}
	parts := strings.Split(inner, ",")
	values := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		values = append(values, float32(f))
	}
	return values, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ vectorstore.Store = (*Store)(nil)
