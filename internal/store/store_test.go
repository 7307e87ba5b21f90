package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/seanblong/resumematch/internal/ai"
)

var _ ai.EmbeddingCache = (*Store)(nil)
var _ EmbeddingStore = (*Store)(nil)

// testStore connects to RESUMEMATCH_TEST_DB, which must point at a
// disposable Postgres with pgvector installed.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("RESUMEMATCH_TEST_DB")
	if url == "" {
		t.Skip("RESUMEMATCH_TEST_DB not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Migrate(ctx, 3); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestStore_EmbeddingRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := ai.CacheKey("test-model", t.Name()+time.Now().String())

	if _, ok, err := s.GetEmbedding(ctx, key); err != nil || ok {
		t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
	}

	want := []float32{0.25, 0.5, 1}
	if err := s.PutEmbedding(ctx, key, "test-model", want); err != nil {
		t.Fatalf("PutEmbedding: %v", err)
	}
	// second write is a no-op
	if err := s.PutEmbedding(ctx, key, "test-model", []float32{9, 9, 9}); err != nil {
		t.Fatalf("PutEmbedding again: %v", err)
	}

	got, ok, err := s.GetEmbedding(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestStore_MigrateRejectsZeroDim(t *testing.T) {
	s := &Store{}
	if err := s.Migrate(context.Background(), 0); err == nil {
		t.Error("Expected error for zero dimension")
	}
}
