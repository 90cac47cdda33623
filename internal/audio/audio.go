// Package audio implements the optional stem-separation / beat-tracking
// collaborator SPEC_FULL.md §9 adds between the extract and detect stages,
// grounded on original_source/backend/app/pipeline/audio_beat.py and
// audio_uvr.py. Those use torch-backed models (beat_this, UVR) with no Go
// equivalent in the pack; this package keeps their audio-extraction and
// non-DBN statistical-fallback path (audio_beat.py's behavior when madmom
// is unavailable) and drops the neural stem separation and DBN inference
// entirely: a requested stem backend is reported as a string in
// Result.Warnings, and no DBN path exists. A failed audio extraction is
// returned as a DEPENDENCY_MISSING error, per spec.md §7.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/internal/ffmpegw"
	"github.com/scorecap/pipeline/pkg/models"
)

// Result is the audio stage's contribution to a job's published result.
type Result struct {
	Enabled     bool     `json:"enabled"`
	BPM         float64  `json:"bpm,omitempty"`
	Beats       []float64 `json:"beats,omitempty"`
	StemBackend string   `json:"stem_backend,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Analyzer extracts the job's audio track and derives a beat grid from its
// energy envelope.
type Analyzer struct {
	ffmpeg *ffmpegw.Wrapper
}

// New constructs an Analyzer.
func New(ffmpeg *ffmpegw.Wrapper) *Analyzer {
	return &Analyzer{ffmpeg: ffmpeg}
}

// Run extracts audio from the job's source and estimates a beat grid. Stem
// separation is requested-but-unavailable in this deployment; its absence
// is reported as a warning rather than a stage failure, since nothing
// downstream of the detect stage depends on it.
func (a *Analyzer) Run(ctx context.Context, job *models.Job, frameDir string) (Result, error) {
	if !job.Options.Audio.Enable {
		return Result{Enabled: false}, nil
	}

	res := Result{Enabled: true}

	if job.Options.Audio.StemBackend != "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"stem backend %q unavailable: no separation engine bundled in this deployment",
			job.Options.Audio.StemBackend))
	}

	if !job.Options.Audio.Beats {
		return res, nil
	}

	audioPath := filepath.Join(frameDir, "audio.wav")
	srcPath := job.Source.Locator
	if job.Source.Kind != models.SourceLocalFile {
		// Beat tracking only runs against a locally materialized source;
		// the extractor is expected to have already cached stream-url
		// sources to a local file under frameDir's parent.
		srcPath = filepath.Join(filepath.Dir(frameDir), "source.mp4")
	}

	if err := a.ffmpeg.ExtractAudio(ctx, srcPath, audioPath); err != nil {
		return res, apperr.Dependency(err, "audio extraction unavailable")
	}
	defer os.Remove(audioPath)

	samples, sampleRate, err := readWAVMono(audioPath)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("beat tracking unavailable: %v", err))
		return res, nil
	}

	beats, bpm := estimateBeats(samples, sampleRate)
	res.Beats = beats
	res.BPM = bpm
	return res, nil
}

// readWAVMono reads a 16-bit PCM WAV file's samples, downmixed to mono.
func readWAVMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var header [44]byte
	if _, err := f.Read(header[:]); err != nil {
		return nil, 0, fmt.Errorf("short wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}
	numChannels := int(binary.LittleEndian.Uint16(header[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(header[24:28]))
	if numChannels <= 0 {
		numChannels = 1
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(raw) <= 44 {
		return nil, sampleRate, fmt.Errorf("empty wav data")
	}
	data := raw[44:]

	frameBytes := 2 * numChannels
	numFrames := len(data) / frameBytes
	samples := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		var sum float64
		for c := 0; c < numChannels; c++ {
			off := i*frameBytes + c*2
			v := int16(binary.LittleEndian.Uint16(data[off : off+2]))
			sum += float64(v) / 32768.0
		}
		samples[i] = sum / float64(numChannels)
	}
	return samples, sampleRate, nil
}

// estimateBeats derives a beat grid from the audio's energy-envelope
// onsets: a windowed RMS envelope, its positive first difference (the
// onset-strength signal), and peak-picking against a global threshold of
// 1.5x the mean onset strength, matching the behavior audio_beat.py falls back to when its
// DBN post-processor (madmom) is unavailable.
func estimateBeats(samples []float64, sampleRate int) ([]float64, float64) {
	if sampleRate <= 0 || len(samples) == 0 {
		return nil, 0
	}

	windowSize := sampleRate / 100 // 10ms windows
	if windowSize < 1 {
		windowSize = 1
	}
	numWindows := len(samples) / windowSize
	if numWindows < 2 {
		return nil, 0
	}

	envelope := make([]float64, numWindows)
	for w := 0; w < numWindows; w++ {
		var sumSq float64
		start := w * windowSize
		end := start + windowSize
		for i := start; i < end; i++ {
			sumSq += samples[i] * samples[i]
		}
		envelope[w] = math.Sqrt(sumSq / float64(windowSize))
	}

	onset := make([]float64, numWindows)
	for w := 1; w < numWindows; w++ {
		d := envelope[w] - envelope[w-1]
		if d > 0 {
			onset[w] = d
		}
	}

	mean, _ := meanStd(onset)
	var beats []float64
	minGapWindows := sampleRate / windowSize / 5 // refractory period ~200ms
	if minGapWindows < 1 {
		minGapWindows = 1
	}
	lastBeat := -minGapWindows
	for w := 1; w < numWindows-1; w++ {
		if onset[w] <= mean*1.5 {
			continue
		}
		if onset[w] < onset[w-1] || onset[w] < onset[w+1] {
			continue
		}
		if w-lastBeat < minGapWindows {
			continue
		}
		beats = append(beats, float64(w*windowSize)/float64(sampleRate))
		lastBeat = w
	}

	return beats, bpmFromBeats(beats)
}

func meanStd(v []float64) (mean, std float64) {
	if len(v) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean = sum / float64(len(v))
	var sqSum float64
	for _, x := range v {
		d := x - mean
		sqSum += d * d
	}
	std = math.Sqrt(sqSum / float64(len(v)))
	return mean, std
}

func bpmFromBeats(beats []float64) float64 {
	if len(beats) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(beats); i++ {
		sum += beats[i] - beats[i-1]
	}
	avgInterval := sum / float64(len(beats)-1)
	if avgInterval <= 0 {
		return 0
	}
	return 60.0 / avgInterval
}
