package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	xerrors "NewsCrew/internal/errors"
)

func TestMemoryQueuePublishAfterCloseFails(t *testing.T) {
	queue := NewMemoryQueue(1)
	if err := queue.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	err := queue.Publish(context.Background(), "t-1")
	if xerrors.CodeOf(err) != xerrors.CodeQueueFailure {
		t.Fatalf("expected queue failure, got %v", err)
	}
}

func TestMemoryQueueCloseWhilePublishing(t *testing.T) {
	queue := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := queue.Publish(ctx, "t"); err != nil {
					return
				}
			}
		}()
	}
	time.Sleep(5 * time.Millisecond)
	if err := queue.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()
}

func TestMemoryQueueConsumeReturnsOnClose(t *testing.T) {
	queue := NewMemoryQueue(4)
	handled := make(chan string, 1)
	if err := queue.Publish(context.Background(), "t-1"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- queue.Consume(context.Background(), 2, func(_ context.Context, id string) error {
			handled <- id
			return nil
		})
	}()

	select {
	case id := <-handled:
		if id != "t-1" {
			t.Fatalf("unexpected task id %q", id)
		}
	case <-time.After(time.Second):
		t.Fatal("task was not consumed")
	}
	_ = queue.Close()
	select {
	case err := <-done:
		if err == nil || errors.Is(err, context.Canceled) {
			t.Fatalf("expected queue closed error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consume did not return after close")
	}
}
