package jobstore

import (
	"os"
	"path/filepath"

	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/pkg/models"
)

// CacheUsage aggregates bytes and path count under the artifact root, per
// the /maintenance/cache-usage endpoint (spec.md §6).
type CacheUsage struct {
	Bytes int64
	Paths int
}

// ComputeCacheUsage walks the artifact root and totals file sizes and path
// count. A missing root is reported as empty usage rather than an error,
// since a fresh install has nothing cached yet.
func ComputeCacheUsage(artifactRoot string) (CacheUsage, error) {
	var usage CacheUsage
	err := filepath.Walk(artifactRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == artifactRoot {
			return nil
		}
		usage.Paths++
		if !info.IsDir() {
			usage.Bytes += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return CacheUsage{}, err
	}
	return usage, nil
}

// ClearResult reports what clear-cache did.
type ClearResult struct {
	BytesReclaimed int64
	Cleared        int
	SkipReasons    map[string]string
}

// ClearCache deletes every top-level entry under the artifact root and
// drops every job from the store, failing with CONFLICT if any job is
// queued or running (spec.md §4.1, "fails with CONFLICT if any job is in
// {queued, running}").
func ClearCache(store *Store, artifactRoot string) (ClearResult, error) {
	if store.AnyActive() {
		return ClearResult{}, apperr.Conflict("cannot clear cache while a job is queued or running")
	}

	entries, err := os.ReadDir(artifactRoot)
	if err != nil {
		if os.IsNotExist(err) {
			store.clearAll()
			return ClearResult{SkipReasons: map[string]string{}}, nil
		}
		return ClearResult{}, err
	}

	result := ClearResult{SkipReasons: map[string]string{}}
	for _, entry := range entries {
		path := filepath.Join(artifactRoot, entry.Name())
		usage, usageErr := ComputeCacheUsage(path)
		if usageErr != nil {
			result.SkipReasons[entry.Name()] = usageErr.Error()
			continue
		}
		info, statErr := entry.Info()
		var entryBytes int64
		if statErr == nil && !entry.IsDir() {
			entryBytes = info.Size()
		} else {
			entryBytes = usage.Bytes
		}

		if err := os.RemoveAll(path); err != nil {
			result.SkipReasons[entry.Name()] = err.Error()
			continue
		}
		result.BytesReclaimed += entryBytes
		result.Cleared++
	}

	store.clearAll()
	return result, nil
}

// clearAll drops every job from the in-memory map. Called only after the
// AnyActive check above has already passed, under the orchestrator's
// single-worker guarantee that no new job starts mid-clear.
func (s *Store) clearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*models.Job)
}
