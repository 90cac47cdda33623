package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPrefixIsStableAndSixteenChars(t *testing.T) {
	a := hashPrefix("https://example.com/video")
	b := hashPrefix("https://example.com/video")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestHashPrefixDiffersByURL(t *testing.T) {
	assert.NotEqual(t, hashPrefix("https://a"), hashPrefix("https://b"))
}

func TestListFramesSortsAndFiltersPNG(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "frame_000002.png"), []byte{1}, 0o644)
	os.WriteFile(filepath.Join(dir, "frame_000001.png"), []byte{1}, 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte{1}, 0o644)

	frames := listFrames(dir)
	assert.Len(t, frames, 2)
	assert.Contains(t, frames[0], "frame_000001.png")
	assert.Contains(t, frames[1], "frame_000002.png")
}

func TestClearDirRemovesChildren(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.png"), []byte{1}, 0o644)
	assert.NoError(t, clearDir(dir))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}
