package task

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	tasks := []*Task{
		{ID: "t1", Kind: KindPost, Subject: "subject-1", Status: StatusPending, MaxRetries: 3},
		{ID: "t2", Kind: KindContentPack, Subject: "robotics weekly", Status: StatusFailed, MaxRetries: 3},
		{ID: "t3", Kind: KindPost, Subject: "subject-3", Status: StatusSucceeded, MaxRetries: 3},
	}

	for _, task := range tasks {
		if err := store.Create(ctx, task); err != nil {
			t.Fatalf("create task %s: %v", task.ID, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := store.MarkFailed(ctx, "t2", CodeTaskProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "t3", ExecutionResult{Output: "ok"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.tasks["t1"].UpdatedAt = base.Unix()
	store.tasks["t2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.tasks["t3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	if all[0].ID != "t3" {
		t.Fatalf("expected newest task first, got %s", all[0].ID)
	}

	failed, err := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "t2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	succeeded, err := store.List(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	if err != nil {
		t.Fatalf("list with result: %v", err)
	}
	if len(succeeded) != 1 || succeeded[0].ID != "t3" {
		t.Fatalf("unexpected result list: %+v", succeeded)
	}

	since := base.Add(15 * time.Second)
	recent, err := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(since)}))
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 tasks to match since filter, got %d", len(recent))
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-3 * time.Minute)
	tasks := []*Task{
		{ID: "a", Kind: KindPost, Subject: "subject-1", Status: StatusPending, MaxRetries: 3},
		{ID: "b", Kind: KindPost, Subject: "subject-2", Status: StatusPending, MaxRetries: 3},
		{ID: "c", Kind: KindPost, Subject: "subject-3", Status: StatusPending, MaxRetries: 3},
	}

	for _, task := range tasks {
		if err := store.Create(ctx, task); err != nil {
			t.Fatalf("create task %s: %v", task.ID, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := store.MarkFailed(ctx, "b", CodeTaskProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "c", ExecutionResult{Output: "ok"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.tasks["a"].UpdatedAt = base.Unix()
	store.tasks["b"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.tasks["c"].UpdatedAt = base.Add(2 * time.Minute).Unix()
	store.mu.Unlock()

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.NewestUpdatedAt != base.Add(2*time.Minute).Unix() {
		t.Fatalf("unexpected newest timestamp: %d", stats.NewestUpdatedAt)
	}
	if stats.OldestUpdatedAt != base.Unix() {
		t.Fatalf("unexpected oldest timestamp: %d", stats.OldestUpdatedAt)
	}

	withResults, err := store.Stats(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	if err != nil {
		t.Fatalf("stats with result: %v", err)
	}
	if withResults.Total != 1 || withResults.Succeeded != 1 {
		t.Fatalf("unexpected stats with result: %+v", withResults)
	}

	withoutResults, err := store.Stats(ctx, buildListOptions([]ListOption{WithResultPresence(false)}))
	if err != nil {
		t.Fatalf("stats without result: %v", err)
	}
	if withoutResults.Total != 2 || withoutResults.Pending != 1 || withoutResults.Failed != 1 {
		t.Fatalf("unexpected stats without result: %+v", withoutResults)
	}

	failedOnly, err := store.Stats(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	if err != nil {
		t.Fatalf("stats failed only: %v", err)
	}
	if failedOnly.Total != 1 || failedOnly.Failed != 1 {
		t.Fatalf("unexpected failed stats: %+v", failedOnly)
	}
}

func TestMemoryStoreStatsCountsDegradedResults(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"fresh", "fallback"} {
		if err := store.Create(ctx, &Task{ID: id, Kind: KindContentPack, Subject: "ai", MaxRetries: 2}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := store.MarkSucceeded(ctx, "fresh", ExecutionResult{Article: "new"}); err != nil {
		t.Fatalf("mark fresh: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "fallback", ExecutionResult{Article: "old", Degraded: "upstream down"}); err != nil {
		t.Fatalf("mark fallback: %v", err)
	}

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Succeeded != 2 || stats.Degraded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMemoryStoreListByKindAndQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, task := range []*Task{
		{ID: "k1", Kind: KindNewsDigest, Subject: "AI chips", MaxRetries: 3},
		{ID: "k2", Kind: KindContentPack, Subject: "AI policy", MaxRetries: 3},
		{ID: "k3", Kind: KindPost, Subject: "football", MaxRetries: 3},
	} {
		if err := store.Create(ctx, task); err != nil {
			t.Fatalf("create %s: %v", task.ID, err)
		}
	}

	digests, err := store.List(ctx, buildListOptions([]ListOption{WithKinds(KindNewsDigest, KindContentPack)}))
	if err != nil {
		t.Fatalf("list kinds: %v", err)
	}
	if len(digests) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(digests))
	}

	matched, err := store.List(ctx, buildListOptions([]ListOption{WithQuery("ai "), WithKinds(KindContentPack)}))
	if err != nil {
		t.Fatalf("list query: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != "k2" {
		t.Fatalf("unexpected query result %+v", matched)
	}

	page, err := store.List(ctx, ListOptions{Limit: 1, Offset: 5})
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty page, got %d", len(page))
	}
}

func TestMemoryStoreClaimStateMachine(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Task{ID: "c1", Kind: KindPost, Subject: "x", MaxRetries: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Task{ID: "c1", Kind: KindPost, Subject: "x"}); err != ErrTaskConflict {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	claimed, err := store.Claim(ctx, "c1")
	if err != nil || claimed.Attempts != 1 || claimed.Status != StatusRunning {
		t.Fatalf("unexpected first claim %+v err=%v", claimed, err)
	}
	if _, err := store.Claim(ctx, "c1"); err != ErrTaskConflict {
		t.Fatalf("expected conflict for running task, got %v", err)
	}

	if err := store.MarkFailed(ctx, "c1", CodeTaskProcessing, "transient", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, _ := store.Get(ctx, "c1")
	if pending.Status != StatusPending || pending.ErrorCode != string(CodeTaskProcessing) {
		t.Fatalf("expected pending after retryable failure, got %+v", pending)
	}

	if _, err := store.Claim(ctx, "c1"); err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if err := store.MarkFailed(ctx, "c1", CodeTaskProcessing, "still broken", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if _, err := store.Claim(ctx, "c1"); err != ErrTaskExhausted {
		t.Fatalf("expected exhausted after max retries, got %v", err)
	}

	if err := store.Create(ctx, &Task{ID: "c2", Kind: KindPost, Subject: "y", MaxRetries: 3}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.MarkFailed(ctx, "c2", CodeTaskProcessing, "fatal", true); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}
	if _, err := store.Claim(ctx, "c2"); err != ErrTaskExhausted {
		t.Fatalf("expected failed task to be unclaimable, got %v", err)
	}

	if err := store.Create(ctx, &Task{ID: "c3", Kind: KindPost, Subject: "z", MaxRetries: 3}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "c3", ExecutionResult{Posts: []Post{{Platform: "X", Content: "hi"}}}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if _, err := store.Claim(ctx, "c3"); err != ErrTaskCompleted {
		t.Fatalf("expected completed, got %v", err)
	}
	if _, err := store.Claim(ctx, "missing"); err != ErrTaskNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
