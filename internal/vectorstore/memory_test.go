package vectorstore

import (
	"context"
	"math"
	"testing"

	xerrors "NewsCrew/internal/errors"
)

func TestMemoryStoreQueryOrdersByScore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	err := store.Upsert(ctx, "news", []Vector{
		{ID: "b", Values: []float32{1, 0}, Metadata: map[string]any{"text": "exact"}},
		{ID: "a", Values: []float32{1, 0}, Metadata: map[string]any{"text": "tie"}},
		{ID: "c", Values: []float32{0, 1}},
		{ID: "d", Values: []float32{1, 1}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := store.Query(ctx, []float32{2, 0}, Query{TopK: 3, IncludeMetadata: true, Namespace: "news"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" || matches[1].ID != "b" || matches[2].ID != "d" {
		t.Fatalf("unexpected order: %+v", matches)
	}
	if math.Abs(matches[0].Score-1) > 1e-9 {
		t.Fatalf("expected score 1, got %v", matches[0].Score)
	}
	if MetadataString(matches[0].Metadata, "text") != "tie" {
		t.Fatalf("metadata missing: %+v", matches[0])
	}
}

func TestMemoryStoreNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	_ = store.Upsert(ctx, "one", []Vector{{ID: "x", Values: []float32{1}}})

	got, _ := store.Fetch(ctx, "two", []string{"x"})
	if len(got) != 0 {
		t.Fatalf("expected empty result in other namespace")
	}
	got, _ = store.Fetch(ctx, "one", []string{"x", "missing"})
	if len(got) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(got))
	}

	if err := store.Delete(ctx, "one", []string{"x"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = store.Fetch(ctx, "one", []string{"x"})
	if len(got) != 0 {
		t.Fatalf("vector not deleted")
	}
}

func TestMemoryStoreRejectsWrongDimension(t *testing.T) {
	store := NewMemoryStore(3)
	err := store.Upsert(context.Background(), "", []Vector{{ID: "x", Values: []float32{1, 2}}})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := store.Query(context.Background(), []float32{1}, Query{}); err == nil {
		t.Fatalf("expected query dimension error")
	}
	if err := store.Upsert(context.Background(), "", []Vector{{Values: []float32{1, 2, 3}}}); err == nil {
		t.Fatalf("expected missing id error")
	}
}

func TestFetchReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	_ = store.Upsert(ctx, "", []Vector{{ID: "x", Values: []float32{1}, Metadata: map[string]any{"k": "v"}}})

	got, _ := store.Fetch(ctx, "", []string{"x"})
	got["x"].Values[0] = 9
	got["x"].Metadata["k"] = "changed"

	again, _ := store.Fetch(ctx, "", []string{"x"})
	if again["x"].Values[0] != 1 || again["x"].Metadata["k"] != "v" {
		t.Fatalf("store state mutated through fetch result")
	}
}

func TestCosineZeroVector(t *testing.T) {
	if Cosine([]float32{0, 0}, []float32{1, 1}) != 0 {
		t.Fatalf("zero vector should score 0")
	}
}
