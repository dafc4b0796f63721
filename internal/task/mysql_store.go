package task

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "NewsCrew/internal/errors"
)

const taskColumns = `id, kind, subject, input, status, attempts, max_retries, last_error, error_code, result, created_at, updated_at`

// MySQLStore 使用 MySQL 记录任务状态。
type MySQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS task_states (
        id VARCHAR(64) PRIMARY KEY,
        kind VARCHAR(32) NOT NULL,
        subject VARCHAR(512) NOT NULL,
        input TEXT,
        status VARCHAR(32) NOT NULL,
        attempts INT NOT NULL DEFAULT 0,
        max_retries INT NOT NULL DEFAULT 3,
        last_error TEXT,
        error_code VARCHAR(64) DEFAULT '',
        result MEDIUMTEXT,
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        INDEX idx_task_status (status),
        INDEX idx_task_updated (updated_at)
)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 task_states 表失败")
	}
	return nil
}

// Create 插入新的任务记录，主键冲突时返回 ErrTaskConflict。
func (s *MySQLStore) Create(ctx context.Context, task *Task) error {
	if task == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "task 不能为空")
	}
	if strings.TrimSpace(task.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "任务 ID 不能为空")
	}

	now := s.now().Unix()
	if task.CreatedAt == 0 {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = StatusPending
	}

	input, err := marshalNullable(task.Input, len(task.Input) == 0)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码任务 input 失败")
	}

	const stmt = `INSERT INTO task_states
        (id, kind, subject, input, status, attempts, max_retries, last_error, error_code, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, '', '', ?, ?)`

	_, err = s.db.ExecContext(ctx, stmt,
		task.ID,
		string(task.Kind),
		task.Subject,
		input,
		string(task.Status),
		task.Attempts,
		task.MaxRetries,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrTaskConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入任务失败")
	}
	return nil
}

// Get 查询指定任务。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task_states WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务失败")
	}
	return task, nil
}

// Claim 将任务标记为运行中并返回最新状态。
func (s *MySQLStore) Claim(ctx context.Context, id string) (*Task, error) {
	const updateStmt = `UPDATE task_states SET status = ?, attempts = attempts + 1, updated_at = ?
        WHERE id = ? AND status = ? AND attempts < max_retries`

	res, err := s.db.ExecContext(ctx, updateStmt,
		string(StatusRunning),
		s.now().Unix(),
		id,
		string(StatusPending),
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新任务状态失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	task, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if affected > 0 {
		return task, nil
	}
	switch task.Status {
	case StatusSucceeded:
		return task, ErrTaskCompleted
	case StatusRunning:
		return task, ErrTaskConflict
	default:
		return task, ErrTaskExhausted
	}
}

// MarkSucceeded 将任务标记为成功。
func (s *MySQLStore) MarkSucceeded(ctx context.Context, id string, result ExecutionResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "编码任务结果失败")
	}
	const stmt = `UPDATE task_states SET status = ?, result = ?, updated_at = ?, last_error = '', error_code = '' WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, string(StatusSucceeded), string(encoded), s.now().Unix(), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记任务成功失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// MarkFailed 记录失败。terminal 为 false 时任务回到 pending 等待重试。
func (s *MySQLStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error {
	const stmt = `UPDATE task_states SET status = ?, last_error = ?, error_code = ?, updated_at = ? WHERE id = ?`

	status := StatusPending
	if terminal {
		status = StatusFailed
	}
	res, err := s.db.ExecContext(ctx, stmt, string(status), lastError, string(code), s.now().Unix(), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记任务失败失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// List 返回符合过滤条件的任务。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Task, error) {
	opts.applyDefaults()

	query := `SELECT ` + taskColumns + ` FROM task_states`
	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	if opts.Order == SortByUpdatedAsc {
		query += " ORDER BY updated_at ASC, created_at ASC, id ASC"
	} else {
		query += " ORDER BY updated_at DESC, created_at DESC, id DESC"
	}
	query += " LIMIT ? OFFSET ?"
	args := append(filterArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务列表失败")
	}
	defer rows.Close()

	tasks := make([]*Task, 0, opts.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析任务记录失败")
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历任务失败")
	}
	return tasks, nil
}

// Stats 返回符合过滤条件的任务聚合信息。degraded 依据结果 JSON 中是否带有该字段。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (TaskStats, error) {
	opts.applyDefaults()

	query := `SELECT
        COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS running,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS succeeded,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed,
        COALESCE(SUM(CASE WHEN status = ? AND result LIKE '%"degraded":%' THEN 1 ELSE 0 END), 0) AS degraded,
        COALESCE(MIN(updated_at), 0) AS oldest,
        COALESCE(MAX(updated_at), 0) AS newest
        FROM task_states`

	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}

	args := []any{string(StatusPending), string(StatusRunning), string(StatusSucceeded), string(StatusFailed), string(StatusSucceeded)}
	args = append(args, filterArgs...)

	var stats TaskStats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Running,
		&stats.Succeeded,
		&stats.Failed,
		&stats.Degraded,
		&stats.OldestUpdatedAt,
		&stats.NewestUpdatedAt,
	); err != nil {
		return TaskStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务统计失败")
	}
	return stats, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task      Task
		kind      string
		status    string
		input     sql.NullString
		lastError sql.NullString
		errorCode sql.NullString
		result    sql.NullString
	)
	if err := row.Scan(
		&task.ID,
		&kind,
		&task.Subject,
		&input,
		&status,
		&task.Attempts,
		&task.MaxRetries,
		&lastError,
		&errorCode,
		&result,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	task.Kind = Kind(kind)
	task.Status = Status(status)
	task.LastError = lastError.String
	task.ErrorCode = errorCode.String
	if input.Valid && strings.TrimSpace(input.String) != "" {
		if err := json.Unmarshal([]byte(input.String), &task.Input); err != nil {
			return nil, fmt.Errorf("解析任务 input 失败: %w", err)
		}
	}
	if result.Valid && strings.TrimSpace(result.String) != "" {
		var decoded ExecutionResult
		if err := json.Unmarshal([]byte(result.String), &decoded); err != nil {
			return nil, fmt.Errorf("解析任务结果失败: %w", err)
		}
		task.Result = &decoded
	}
	return &task, nil
}

func marshalNullable(value any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(encoded), Valid: true}, nil
}

func buildFilterClause(opts ListOptions) (string, []any) {
	conditions := make([]string, 0, 5)
	args := make([]any, 0, 8)

	if len(opts.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", placeholders(len(opts.Statuses))))
		for _, status := range opts.Statuses {
			args = append(args, string(status))
		}
	}
	if len(opts.Kinds) > 0 {
		conditions = append(conditions, fmt.Sprintf("kind IN (%s)", placeholders(len(opts.Kinds))))
		for _, kind := range opts.Kinds {
			args = append(args, string(kind))
		}
	}
	if opts.UpdatedGTE > 0 {
		conditions = append(conditions, "updated_at >= ?")
		args = append(args, opts.UpdatedGTE)
	}
	if opts.UpdatedLTE > 0 {
		conditions = append(conditions, "updated_at <= ?")
		args = append(args, opts.UpdatedLTE)
	}
	if opts.HasResult != nil {
		if *opts.HasResult {
			conditions = append(conditions, "(result IS NOT NULL AND result <> '')")
		} else {
			conditions = append(conditions, "(result IS NULL OR result = '')")
		}
	}
	if opts.Query != "" {
		pattern := "%" + opts.Query + "%"
		conditions = append(conditions, "(id LIKE ? OR subject LIKE ? OR last_error LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var _ Store = (*MySQLStore)(nil)
