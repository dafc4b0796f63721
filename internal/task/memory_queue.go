package task

import (
	"context"
	"sync"

	xerrors "NewsCrew/internal/errors"
)

// MemoryQueue 使用带缓冲的 channel 作为进程内任务队列。
// ch 永不关闭，关闭信号通过 done 广播。
type MemoryQueue struct {
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue 创建一个内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size), done: make(chan struct{})}
}

// Publish 将任务投递到队列。
func (q *MemoryQueue) Publish(ctx context.Context, taskID string) error {
	select {
	case <-q.done:
		return errQueueClosed()
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return errQueueClosed()
	case q.ch <- taskID:
		return nil
	}
}

// Consume 启动指定数量的工作协程消费队列中的任务，ctx 取消或队列关闭后返回。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case taskID := <-q.ch:
					_ = handler(ctx, taskID)
				}
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return errQueueClosed()
}

// Close 关闭内存队列，可重复调用。
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

func errQueueClosed() error {
	return xerrors.New(xerrors.CodeQueueFailure, "队列已关闭")
}
