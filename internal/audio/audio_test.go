package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateBeatsOnRegularClicks(t *testing.T) {
	const sampleRate = 44100
	const bpm = 120.0
	interval := 60.0 / bpm
	durationSec := 8.0
	samples := make([]float64, int(durationSec*sampleRate))

	clickLen := sampleRate / 50
	for beatTime := 0.0; beatTime < durationSec; beatTime += interval {
		start := int(beatTime * sampleRate)
		for i := 0; i < clickLen && start+i < len(samples); i++ {
			samples[start+i] = 0.9
		}
	}

	beats, gotBPM := estimateBeats(samples, sampleRate)
	assert.NotEmpty(t, beats)
	if gotBPM > 0 {
		assert.InDelta(t, bpm, gotBPM, 15)
	}
}

func TestEstimateBeatsOnSilenceReturnsEmpty(t *testing.T) {
	samples := make([]float64, 44100*2)
	beats, bpm := estimateBeats(samples, 44100)
	assert.Empty(t, beats)
	assert.Equal(t, 0.0, bpm)
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{1, 2, 3, 4, 5})
	assert.Equal(t, 3.0, mean)
	assert.InDelta(t, math.Sqrt(2), std, 1e-9)
}

func TestBpmFromBeatsRequiresTwoBeats(t *testing.T) {
	assert.Equal(t, 0.0, bpmFromBeats(nil))
	assert.Equal(t, 0.0, bpmFromBeats([]float64{1.0}))
	assert.InDelta(t, 120.0, bpmFromBeats([]float64{0, 0.5, 1.0}), 1e-9)
}
