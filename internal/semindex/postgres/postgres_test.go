package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxvault/voxvault/internal/semindex"
	"github.com/voxvault/voxvault/internal/semindex/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if VOXVAULT_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOXVAULT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOXVAULT_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestIndex opens a fresh [postgres.Index] with a clean notes table.
// It calls t.Cleanup to close the index when the test finishes.
func newTestIndex(t *testing.T) *postgres.Index {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := cleanPool.Exec(ctx, "DROP TABLE IF EXISTS notes"); err != nil {
		cleanPool.Close()
		t.Fatalf("drop notes: %v", err)
	}
	cleanPool.Close()

	idx, err := postgres.Open(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func entry(path string, vec []float32) semindex.Entry {
	return semindex.Entry{
		Path:      path,
		Title:     path,
		Embedding: vec,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestIndex_AddAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for _, e := range []semindex.Entry{
		entry("a.md", []float32{1, 0, 0, 0}),
		entry("b.md", []float32{0.9, 0.1, 0, 0}),
		entry("c.md", []float32{0, 0, 0, 1}),
	} {
		if err := idx.Add(ctx, e); err != nil {
			t.Fatalf("Add(%s): %v", e.Path, err)
		}
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 2, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Path != "a.md" {
		t.Errorf("results[0] = %q, want a.md first", results[0].Path)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("similarity = %f, want ~1 for identical vector", results[0].Similarity)
	}
}

func TestIndex_UpsertByPath(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Add(ctx, entry("a.md", []float32{1, 0, 0, 0})); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(ctx, entry("a.md", []float32{0, 1, 0, 0})); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := idx.Search(ctx, []float32{0, 1, 0, 0}, 10, 0.9)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 after upsert", len(results))
	}
}

func TestIndex_SimilarityFloor(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Add(ctx, entry("far.md", []float32{0, 1, 0, 0})); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none below the similarity floor", results)
	}
}
