// Package jsonfile implements the semantic index as a single JSON file with a
// linear cosine scan. It suits personal vaults of up to a few thousand notes;
// larger deployments should use the postgres backend.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/voxvault/voxvault/internal/semindex"
)

// Index is the file-backed implementation of [semindex.Index].
type Index struct {
	path string

	mu      sync.RWMutex
	entries []semindex.Entry
}

var _ semindex.Index = (*Index)(nil)

// Open loads the index file at path, creating an empty index when the file
// does not exist yet.
func Open(path string) (*Index, error) {
	if path == "" {
		return nil, errors.New("jsonfile: index path is required")
	}

	idx := &Index{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return idx, nil
	case err != nil:
		return nil, fmt.Errorf("jsonfile: read %s: %w", path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &idx.entries); err != nil {
			return nil, fmt.Errorf("jsonfile: decode %s: %w", path, err)
		}
	}
	return idx, nil
}

// Add upserts the entry and persists the whole index to disk.
func (idx *Index) Add(ctx context.Context, entry semindex.Entry) error {
	if entry.Path == "" {
		return errors.New("jsonfile: entry path is required")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	replaced := false
	for i := range idx.entries {
		if idx.entries[i].Path == entry.Path {
			idx.entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		idx.entries = append(idx.entries, entry)
	}

	return idx.persist()
}

// Search scans all entries and returns the topK above minSimilarity,
// most similar first.
func (idx *Index) Search(ctx context.Context, embedding []float32, topK int, minSimilarity float64) ([]semindex.Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var results []semindex.Result
	for _, e := range idx.entries {
		sim := semindex.CosineSimilarity(embedding, e.Embedding)
		if sim < minSimilarity {
			continue
		}
		results = append(results, semindex.Result{Entry: e, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Ping reports whether the index folder is still writable. Readiness checks
// call it; a vanished or read-only folder would fail the next Add.
func (idx *Index) Ping(_ context.Context) error {
	dir := filepath.Dir(idx.path)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		// Not created yet; the first Add will make it.
		return nil
	}
	if err != nil {
		return fmt.Errorf("jsonfile: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("jsonfile: %s is not a directory", dir)
	}
	return nil
}

// Close is a no-op; every Add already persists.
func (idx *Index) Close() error { return nil }

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// persist writes the index atomically via a temp file rename.
// Callers must hold the write lock.
func (idx *Index) persist() error {
	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return fmt.Errorf("jsonfile: create index folder: %w", err)
	}

	data, err := json.Marshal(idx.entries)
	if err != nil {
		return fmt.Errorf("jsonfile: encode index: %w", err)
	}

	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("jsonfile: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("jsonfile: rename %s: %w", tmp, err)
	}
	return nil
}
