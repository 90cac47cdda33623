// Package extract implements the Frame Extractor (spec.md §4.3): resolve
// the job's source to a local file, sample frames at a chosen cadence with
// an hwaccel fallback ladder, and support a single-frame preview variant.
// Grounded on the teacher's internal/transcoder/service.go ProcessJob
// temp-dir/download/transcode shape, retargeted from one transcode
// invocation to a fps-sampled PNG sequence with per-candidate retry.
package extract

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scorecap/pipeline/internal/accel"
	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/internal/config"
	"github.com/scorecap/pipeline/internal/ffmpegw"
	"github.com/scorecap/pipeline/pkg/models"
)

// Result is the extractor's output: the frame directory, the ordered frame
// paths, the resolved local source path, and the HW-accel mode that
// succeeded.
type Result struct {
	FrameDir     string
	Frames       []string
	SourcePath   string
	HWAccelUsed  string
}

// Downloader resolves a streaming-URL source to a local file. Spec.md's
// Non-goals exclude the downloader's own internals; this interface is the
// seam a real implementation plugs into. The default Extractor has none
// wired, so stream-url sources fail with a Dependency error until one is
// configured.
type Downloader interface {
	Download(ctx context.Context, url, destDir string) (path string, err error)
}

// Extractor samples frames from a job's source video.
type Extractor struct {
	ffmpeg     *ffmpegw.Wrapper
	accel      *accel.Probe
	cfg        config.JobsConfig
	downloader Downloader
}

// New constructs an Extractor. Call WithDownloader to enable stream-url
// sources.
func New(ffmpeg *ffmpegw.Wrapper, accelProbe *accel.Probe, cfg config.JobsConfig) *Extractor {
	return &Extractor{ffmpeg: ffmpeg, accel: accelProbe, cfg: cfg}
}

// WithDownloader attaches a streaming-URL downloader.
func (e *Extractor) WithDownloader(d Downloader) *Extractor {
	e.downloader = d
	return e
}

// Run resolves the job's source and samples frames into
// <job.ArtifactDir>/frames.
func (e *Extractor) Run(ctx context.Context, job *models.Job) (Result, error) {
	sourcePath, err := e.resolveSource(ctx, job)
	if err != nil {
		return Result{}, err
	}

	frameDir := filepath.Join(job.ArtifactDir, "frames")
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create frame dir: %w", err)
	}

	fps := job.Options.Extract.ResolveFPS()
	var windowStart, windowEnd float64
	if w := job.Options.Extract.Window; w != nil {
		windowStart, windowEnd = w.Start, w.End
	}

	snap := e.accel.Get(ctx)

	var stderrTails []string
	for _, candidate := range snap.DecodeCandidates {
		if err := clearDir(frameDir); err != nil {
			return Result{}, fmt.Errorf("clear frame dir: %w", err)
		}

		opts := ffmpegw.ExtractOptions{
			InputPath:   sourcePath,
			OutputGlob:  filepath.Join(frameDir, "frame_%06d.png"),
			FPS:         fps,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
			HWAccel:     candidate,
		}
		extractErr := e.ffmpeg.Extract(ctx, opts)
		frames := listFrames(frameDir)
		if extractErr == nil && len(frames) >= 1 {
			return Result{FrameDir: frameDir, Frames: frames, SourcePath: sourcePath, HWAccelUsed: candidate.Name}, nil
		}
		if extractErr != nil {
			stderrTails = append(stderrTails, fmt.Sprintf("[%s] %v", candidate.Name, extractErr))
		} else {
			stderrTails = append(stderrTails, fmt.Sprintf("[%s] produced 0 frames", candidate.Name))
		}
	}

	tail := stderrTails
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	return Result{}, apperr.Pipeline(fmt.Errorf(strings.Join(tail, " | ")), "all hwaccel candidates failed")
}

// PreviewFrame extracts a single frame at startSec for the preview
// endpoint, trying each hwaccel candidate crossed with a small ladder of
// seek-before/after permutations to survive non-seekable codecs.
func (e *Extractor) PreviewFrame(ctx context.Context, sourcePath, outputPath string, startSec float64) error {
	snap := e.accel.Get(ctx)

	type attempt struct {
		before bool
		offset float64
	}
	ladder := []attempt{
		{before: true, offset: 0},
		{before: false, offset: 0},
		{before: true, offset: 0.25},
		{before: false, offset: 0.25},
	}

	var lastErr error
	for _, candidate := range snap.DecodeCandidates {
		for _, a := range ladder {
			err := e.ffmpeg.ExtractSingleFrame(ctx, sourcePath, outputPath, startSec+a.offset, a.before, candidate)
			if err == nil {
				if info, statErr := os.Stat(outputPath); statErr == nil && info.Size() > 0 {
					return nil
				}
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no frame produced")
	}
	return apperr.Transient(lastErr, "preview extraction failed for all hwaccel/seek permutations")
}

// resolveSource materializes the job's source as a local file, using the
// streaming-URL cache keyed by a hash prefix of the URL for stream-url
// sources.
func (e *Extractor) resolveSource(ctx context.Context, job *models.Job) (string, error) {
	path, _, err := e.ResolveSource(ctx, job.Source)
	return path, err
}

// ResolveSource materializes source as a local file and reports whether the
// streaming-URL cache was already populated, for the /preview/source
// endpoint (spec.md §6: "ensure a local video exists for a given source;
// return path, URL, cache-hit flag").
func (e *Extractor) ResolveSource(ctx context.Context, source models.Source) (path string, cacheHit bool, err error) {
	if source.Kind == models.SourceLocalFile {
		return source.Locator, false, nil
	}

	if e.downloader == nil {
		return "", false, apperr.Dependency(fmt.Errorf("no stream downloader configured"),
			"streaming-url sources require an external downloader")
	}

	cacheKey := hashPrefix(source.Locator)
	cacheDir := filepath.Join(e.cfg.CacheDir, cacheKey)
	if entries, readErr := os.ReadDir(cacheDir); readErr == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				return filepath.Join(cacheDir, entry.Name()), true, nil
			}
		}
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create download cache dir: %w", err)
	}
	downloaded, err := e.downloader.Download(ctx, source.Locator, cacheDir)
	if err != nil {
		return "", false, apperr.Dependency(err, "streaming-url download failed")
	}
	return downloaded, false, nil
}

func hashPrefix(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func listFrames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}
