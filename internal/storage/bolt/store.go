package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/storage"
)

var (
	bucketRecords = []byte("records")
	bucketByTime  = []byte("records_by_time")
)

// Store 使用 BoltDB 文件保存归档记录。
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open 打开（必要时创建）path 处的数据库。
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建归档目录失败")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "打开归档数据库失败")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketByTime} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化归档数据库失败")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Save 写入记录；相同 ID 的旧记录会被替换。
func (s *Store) Save(_ context.Context, record *storage.Record) error {
	if err := storage.Validate(record); err != nil {
		return err
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = s.now().Unix()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化归档记录失败")
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		index := tx.Bucket(bucketByTime)
		if previous := records.Get([]byte(record.ID)); previous != nil {
			var old storage.Record
			if err := json.Unmarshal(previous, &old); err == nil {
				if err := index.Delete(timeKey(old.CreatedAt, old.ID)); err != nil {
					return err
				}
			}
		}
		if err := records.Put([]byte(record.ID), data); err != nil {
			return err
		}
		return index.Put(timeKey(record.CreatedAt, record.ID), []byte(record.ID))
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入归档记录失败")
	}
	return nil
}

// Get 按 ID 读取记录。
func (s *Store) Get(_ context.Context, id string) (*storage.Record, error) {
	var record *storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(id))
		if data == nil {
			return nil
		}
		record = &storage.Record{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取归档记录失败")
	}
	if record == nil {
		return nil, storage.ErrRecordNotFound
	}
	return record, nil
}

// ListLatest 按创建时间倒序返回最多 limit 条记录。
func (s *Store) ListLatest(_ context.Context, limit int) ([]storage.Record, error) {
	limit = storage.NormalizeLimit(limit)
	results := make([]storage.Record, 0, limit)
	err := s.db.View(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		cursor := tx.Bucket(bucketByTime).Cursor()
		for k, id := cursor.Last(); k != nil && len(results) < limit; k, id = cursor.Prev() {
			data := records.Get(id)
			if data == nil {
				continue
			}
			var record storage.Record
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
			results = append(results, record)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询归档记录失败")
	}
	return results, nil
}

// Close 关闭数据库文件。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// timeKey 以大端时间戳开头，使游标顺序即时间顺序。
func timeKey(createdAt int64, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(createdAt))
	return append(key, id...)
}

var _ storage.Repository = (*Store)(nil)
