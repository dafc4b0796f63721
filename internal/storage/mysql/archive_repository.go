package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/storage"
)

const (
	upsertRecordSQL = `INSERT INTO content_archive
    (id, kind, subject, article, posts, digest, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE kind = VALUES(kind), subject = VALUES(subject), article = VALUES(article),
    posts = VALUES(posts), digest = VALUES(digest), created_at = VALUES(created_at)`
	selectRecordSQL = `SELECT id, kind, subject, article, posts, digest, created_at
    FROM content_archive WHERE id = ?`
	listRecordsSQL = `SELECT id, kind, subject, article, posts, digest, created_at
    FROM content_archive ORDER BY created_at DESC, id DESC LIMIT ?`
)

// ArchiveRepository 使用 MySQL 保存归档记录。
type ArchiveRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewArchiveRepository 建立连接池并执行内嵌迁移。
func NewArchiveRepository(ctx context.Context, cfg Config) (*ArchiveRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &ArchiveRepository{db: db, now: time.Now}, nil
}

// Save 写入记录，ID 已存在时覆盖。
func (r *ArchiveRepository) Save(ctx context.Context, record *storage.Record) error {
	if err := storage.Validate(record); err != nil {
		return err
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = r.now().Unix()
	}
	var posts any
	if len(record.Posts) > 0 {
		posts = string(record.Posts)
	}
	if _, err := r.db.ExecContext(ctx, upsertRecordSQL,
		record.ID,
		record.Kind,
		record.Subject,
		record.Article,
		posts,
		record.Digest,
		record.CreatedAt,
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入归档记录失败")
	}
	return nil
}

// Get 按 ID 查询记录。
func (r *ArchiveRepository) Get(ctx context.Context, id string) (*storage.Record, error) {
	row := r.db.QueryRowContext(ctx, selectRecordSQL, id)
	record, err := scanRecord(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取归档记录失败")
	}
	return record, nil
}

// ListLatest 按创建时间倒序返回记录。
func (r *ArchiveRepository) ListLatest(ctx context.Context, limit int) ([]storage.Record, error) {
	rows, err := r.db.QueryContext(ctx, listRecordsSQL, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询归档记录失败")
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析归档记录失败")
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历归档记录失败")
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (r *ArchiveRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*storage.Record, error) {
	var (
		record  storage.Record
		article sql.NullString
		posts   sql.NullString
		digest  sql.NullString
	)
	if err := s.Scan(&record.ID, &record.Kind, &record.Subject, &article, &posts, &digest, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.Article = article.String
	record.Digest = digest.String
	if posts.Valid && posts.String != "" {
		record.Posts = []byte(posts.String)
	}
	return &record, nil
}

var _ storage.Repository = (*ArchiveRepository)(nil)
