// Package ffmpegw wraps ffmpeg/ffprobe subprocess invocation, generalized
// from the teacher's internal/transcoder/ffmpeg.go FFmpeg type: the same
// ffmpeg/ffprobe-path-holding struct and bytes.Buffer/CommandContext
// plumbing, retargeted from transcode options to the frame-extraction,
// preview, audio-extraction, and HW-scale-graph invocations spec.md §6
// describes.
package ffmpegw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/scorecap/pipeline/pkg/models"
)

// Wrapper wraps ffmpeg/ffprobe binary invocation shared by the extractor,
// audio stubs, and upscaler's HW-scaler engine.
type Wrapper struct {
	FFmpegPath  string
	FFprobePath string
}

// New constructs a Wrapper.
func New(ffmpegPath, ffprobePath string) *Wrapper {
	return &Wrapper{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// ProbeResult is the subset of ffprobe's JSON output the pipeline needs.
type ProbeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Duration returns the source duration in seconds, or 0 if it could not be
// determined.
func (r ProbeResult) Duration() float64 {
	d, _ := strconv.ParseFloat(r.Format.Duration, 64)
	return d
}

// Resolution returns the first video stream's width and height.
func (r ProbeResult) Resolution() (w, h int) {
	for _, s := range r.Streams {
		if s.CodecType == "video" {
			return s.Width, s.Height
		}
	}
	return 0, 0
}

// Probe runs ffprobe against a local file and parses its JSON summary.
func (w *Wrapper) Probe(ctx context.Context, inputPath string) (ProbeResult, error) {
	args := []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", inputPath}
	cmd := exec.CommandContext(ctx, w.FFprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	var result ProbeResult
	if err := cmd.Run(); err != nil {
		return result, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return result, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return result, nil
}

// ExtractOptions configures a sampled-frame extraction run.
type ExtractOptions struct {
	InputPath   string
	OutputGlob  string // e.g. "<dir>/frame_%06d.png"
	FPS         float64
	WindowStart float64 // seconds, 0 = from start
	WindowEnd   float64 // seconds, 0 = to end
	HWAccel     models.HWAccelFlagSet
}

// Extract invokes ffmpeg to sample frames at the given cadence into
// OutputGlob, honoring an optional seek window and HW-accel flag set, per
// spec.md §4.3 step 3. On failure the error carries the last 20 lines of
// stderr so the extractor can record it and try the next acceleration
// candidate.
func (w *Wrapper) Extract(ctx context.Context, opts ExtractOptions) error {
	args := append([]string{}, opts.HWAccel.Flags...)
	if opts.WindowStart > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", opts.WindowStart))
	}
	args = append(args, "-i", opts.InputPath)
	if opts.WindowEnd > opts.WindowStart && opts.WindowEnd > 0 {
		args = append(args, "-to", fmt.Sprintf("%.3f", opts.WindowEnd-opts.WindowStart))
	}
	args = append(args, "-vf", fmt.Sprintf("fps=%g", opts.FPS), "-y", opts.OutputGlob)

	cmd := exec.CommandContext(ctx, w.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg extraction failed: %w, stderr: %s", err, tailLines(stderr.String(), 20))
	}
	return nil
}

// ExtractSingleFrame extracts exactly one frame at startSec, used for the
// preview endpoint. Seeking before vs after -i and small retry offsets are
// the caller's responsibility (the extractor's preview ladder).
func (w *Wrapper) ExtractSingleFrame(ctx context.Context, inputPath, outputPath string, startSec float64, seekBeforeInput bool, hwaccel models.HWAccelFlagSet) error {
	var args []string
	args = append(args, hwaccel.Flags...)
	if seekBeforeInput {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startSec), "-i", inputPath)
	} else {
		args = append(args, "-i", inputPath, "-ss", fmt.Sprintf("%.3f", startSec))
	}
	args = append(args, "-vframes", "1", "-q:v", "2", "-y", outputPath)

	cmd := exec.CommandContext(ctx, w.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("preview frame extraction failed: %w, stderr: %s", err, tailLines(stderr.String(), 10))
	}
	return nil
}

// ExtractAudio extracts stereo 44.1kHz 16-bit PCM audio, per spec.md §6's
// transcoder interface, for the audio subsystem's interface stubs.
func (w *Wrapper) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	args := []string{"-i", inputPath, "-vn", "-ac", "2", "-ar", "44100", "-sample_fmt", "s16", "-y", outputPath}
	cmd := exec.CommandContext(ctx, w.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio extraction failed: %w, stderr: %s", err, tailLines(stderr.String(), 10))
	}
	return nil
}

// HWScaleFrame runs a single-frame HW-upload/scale/HW-download graph,
// used by the upscaler's HW-scaler engine fallback.
func (w *Wrapper) HWScaleFrame(ctx context.Context, inputPath, outputPath string, targetW, targetH int, platformFilter string) error {
	filter := fmt.Sprintf("hwupload,%s=%d:%d,hwdownload", platformFilter, targetW, targetH)
	args := []string{"-i", inputPath, "-vf", filter, "-frames:v", "1", "-y", outputPath}
	cmd := exec.CommandContext(ctx, w.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hw-scaler failed: %w, stderr: %s", err, tailLines(stderr.String(), 10))
	}
	return nil
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
