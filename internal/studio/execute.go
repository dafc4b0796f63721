package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/storage"
	"NewsCrew/internal/task"
)

// recoveryScanDepth 是降级时回看的归档条数。
const recoveryScanDepth = 50

// Execute 执行异步任务，供 task.Processor 调用。
func (s *Studio) Execute(ctx context.Context, req task.Request) (*task.ExecutionResult, error) {
	switch req.Kind {
	case task.KindNewsDigest:
		digest, err := s.Digest(ctx, req.Subject)
		if err != nil {
			return nil, err
		}
		return &task.ExecutionResult{Output: digest.Text, ArchiveID: digest.ID}, nil
	case task.KindContentPack:
		pack, err := s.CreateContent(ctx, req.Subject)
		if err != nil {
			return nil, err
		}
		return &task.ExecutionResult{Article: pack.Article, Posts: toTaskPosts(pack.Posts), ArchiveID: pack.ID}, nil
	case task.KindPost:
		platform := orDefault(req.Input["platform"], defaultPlatform)
		text, err := s.GeneratePost(ctx, req.Subject, req.Input["tone"], platform)
		if err != nil {
			return nil, err
		}
		posts := []Post{{Platform: platform, Content: text}}
		raw, _ := json.Marshal(posts)
		id := s.archiveRecord(ctx, &storage.Record{Kind: string(task.KindPost), Subject: req.Subject, Posts: raw})
		return &task.ExecutionResult{Output: text, Posts: toTaskPosts(posts), ArchiveID: id}, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的任务类型: "+string(req.Kind))
	}
}

// Recover 在任务不可重试地失败时，返回同类型同主题的最近一次归档内容。
// 没有可用归档时返回 nil，任务按失败处理。
func (s *Studio) Recover(ctx context.Context, t *task.Task, cause error) (*task.ExecutionResult, error) {
	if s.archive == nil || t == nil {
		return nil, nil
	}
	records, err := s.archive.ListLatest(ctx, recoveryScanDepth)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取归档记录失败")
	}
	for _, record := range records {
		if record.Kind != string(t.Kind) || record.Subject != t.Subject {
			continue
		}
		result := &task.ExecutionResult{
			Output:    record.Digest,
			Article:   record.Article,
			ArchiveID: record.ID,
			Degraded:  fmt.Sprintf("使用 %s 的归档内容: %v", record.ID, cause),
		}
		if len(record.Posts) > 0 {
			var posts []Post
			if err := json.Unmarshal(record.Posts, &posts); err == nil {
				result.Posts = toTaskPosts(posts)
			}
		}
		s.log.Warn("任务降级为归档内容",
			slog.String("task_id", t.ID),
			slog.String("archive_id", record.ID))
		return result, nil
	}
	return nil, nil
}

// Get 返回一条归档记录。
func (s *Studio) Get(ctx context.Context, id string) (*storage.Record, error) {
	if s.archive == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置内容归档")
	}
	return s.archive.Get(ctx, id)
}

func toTaskPosts(posts []Post) []task.Post {
	out := make([]task.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, task.Post{Platform: p.Platform, Content: p.Content})
	}
	return out
}

var (
	_ task.Executor        = (*Studio)(nil)
	_ task.RecoveryHandler = (*Studio)(nil)
)
