package accel

import (
	"context"
	"sync"
	"testing"

	"github.com/scorecap/pipeline/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestGetSingleInitUnderConcurrentReads(t *testing.T) {
	p := New(config.AccelConfig{GPUResizePreference: "cpu"}, "ffmpeg-does-not-exist")

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			snap := p.Get(context.Background())
			results[idx] = string(snap.ResizeBackend)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "cpu", r)
	}
}

func TestSelectResizeBackendHonorsOverride(t *testing.T) {
	p := New(config.AccelConfig{GPUResizePreference: "cpu"}, "ffmpeg-does-not-exist")
	snap := p.Get(context.Background())
	assert.Equal(t, "cpu", string(snap.ResizeBackend))
}

func TestDecodeCandidateOrderAlwaysEndsWithCPU(t *testing.T) {
	candidates := decodeCandidateOrder(map[string]bool{"cuda": true, "vaapi": true})
	assert.NotEmpty(t, candidates)
	assert.Equal(t, "cpu", candidates[len(candidates)-1].Name)
}
