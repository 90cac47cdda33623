package jobstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheUsageSumsFileSizesAndPathCount(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "job1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "job1", "a.png"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "job1", "b.png"), make([]byte, 50), 0o644))

	usage, err := ComputeCacheUsage(root)
	require.NoError(t, err)
	assert.Equal(t, int64(150), usage.Bytes)
	assert.Equal(t, 3, usage.Paths)
}

func TestCacheUsageMissingRootIsEmpty(t *testing.T) {
	usage, err := ComputeCacheUsage(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Bytes)
	assert.Equal(t, 0, usage.Paths)
}

func TestClearCacheRejectsWhileJobActive(t *testing.T) {
	root := t.TempDir()
	store := NewStore()
	store.Put(&models.Job{ID: "j1", Status: models.JobStatusRunning})

	_, err := ClearCache(store, root)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestClearCacheRemovesTopLevelEntriesAndJobs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "job1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "job1", "a.png"), make([]byte, 200), 0o644))

	store := NewStore()
	store.Put(&models.Job{ID: "j1", Status: models.JobStatusDone})

	result, err := ClearCache(store, root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cleared)
	assert.Equal(t, int64(200), result.BytesReclaimed)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Nil(t, store.Get("j1"))
}

func TestClearCacheOnMissingRootStillClearsJobs(t *testing.T) {
	store := NewStore()
	store.Put(&models.Job{ID: "j1", Status: models.JobStatusDone})

	_, err := ClearCache(store, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Nil(t, store.Get("j1"))
}
