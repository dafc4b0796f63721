package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/storage"
)

var archiveColumns = []string{"id", "kind", "subject", "article", "posts", "digest", "created_at"}

func TestArchiveRepositorySave(t *testing.T) {
	t.Parallel()

	db, driver := newMockDB(t, []mockOperation{
		execOp(upsertRecordSQL, mockResult{rowsAffected: 1}),
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &ArchiveRepository{db: db, now: func() time.Time { return time.Unix(100, 0) }}
	record := &storage.Record{ID: "r1", Kind: "content_pack", Subject: "AI", Article: "text", Posts: []byte(`[]`)}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if record.CreatedAt != 100 {
		t.Fatalf("expected created_at to be assigned, got %d", record.CreatedAt)
	}
}

func TestArchiveRepositorySaveValidates(t *testing.T) {
	t.Parallel()

	db, driver := newMockDB(t, nil)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &ArchiveRepository{db: db, now: time.Now}
	if err := repo.Save(context.Background(), &storage.Record{Kind: "post"}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestArchiveRepositoryGet(t *testing.T) {
	t.Parallel()

	rows := mockRowsData{
		columns: archiveColumns,
		values:  [][]driver.Value{{"r1", "content_pack", "AI", "article", `[{"platform":"X","content":"hi"}]`, nil, int64(5)}},
	}
	db, driver := newMockDB(t, []mockOperation{
		queryOp(selectRecordSQL, rows),
		queryOp(selectRecordSQL, mockRowsData{columns: archiveColumns}),
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &ArchiveRepository{db: db, now: time.Now}
	rec, err := repo.Get(context.Background(), "r1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.Article != "article" || rec.Digest != "" || string(rec.Posts) != `[{"platform":"X","content":"hi"}]` {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := repo.Get(context.Background(), "missing"); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestArchiveRepositoryListLatest(t *testing.T) {
	t.Parallel()

	rows := mockRowsData{
		columns: archiveColumns,
		values: [][]driver.Value{
			{"b", "news_digest", "Go", nil, nil, "digest", int64(20)},
			{"a", "post", "Rust", "post body", nil, nil, int64(10)},
		},
	}
	db, driver := newMockDB(t, []mockOperation{queryOp(listRecordsSQL, rows)})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &ArchiveRepository{db: db, now: time.Now}
	list, err := repo.ListLatest(context.Background(), 0)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[0].Digest != "digest" || list[1].Posts != nil {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestRunMigrations(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{columns: []string{"version"}}),
		beginOp(),
		execOp(readMigrationStatement(), mockResult{rowsAffected: 0}),
		execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, mockResult{rowsAffected: 1}),
		commitOp(),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestRunMigrationsSkipsApplied(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{
			columns: []string{"version"},
			values:  [][]driver.Value{{"0001"}},
		}),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func readMigrationStatement() string {
	content, err := embeddedMigrations.ReadFile("0001_content_archive.sql")
	if err != nil {
		panic(fmt.Sprintf("failed to read migration: %v", err))
	}
	statements := splitSQLStatements(string(content))
	if len(statements) == 0 {
		panic("no statements in migration")
	}
	return statements[0]
}

type operationType int

const (
	opExec operationType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops []mockOperation
	idx int32
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("mock-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func beginOp() mockOperation { return mockOperation{typ: opBegin} }

func commitOp() mockOperation { return mockOperation{typ: opCommit} }

func rollbackOp() mockOperation { return mockOperation{typ: opRollback} }

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *mockConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	op, err := c.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockTx{driver: c.driver}, nil
}

func (c *mockConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return c.ExecContext(context.Background(), query, named(args))
}

func (c *mockConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return c.QueryContext(context.Background(), query, named(args))
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *mockConn) Ping(ctx context.Context) error { return nil }

func (c *mockConn) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&c.driver.idx))
	if idx >= len(c.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &c.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&c.driver.idx, 1)
	if op.query != "" {
		expectedSQL := normalizeSQL(op.query)
		actualSQL := normalizeSQL(query)
		if expectedSQL != actualSQL {
			return nil, fmt.Errorf("unexpected query. want %q got %q", expectedSQL, actualSQL)
		}
	}
	return op, nil
}

type mockTx struct {
	driver *queueDriver
}

func (t *mockTx) Commit() error {
	op, err := t.next(opCommit)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) Rollback() error {
	op, err := t.next(opRollback)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) next(expected operationType) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&t.driver.idx))
	if idx >= len(t.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &t.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&t.driver.idx, 1)
	return op, nil
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func named(args []driver.Value) []driver.NamedValue {
	namedArgs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		namedArgs[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return namedArgs
}

func normalizeSQL(query string) string {
	fields := strings.Fields(query)
	return strings.Join(fields, " ")
}
