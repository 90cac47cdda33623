package jobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/scorecap/pipeline/internal/accel"
	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/internal/audio"
	"github.com/scorecap/pipeline/internal/config"
	"github.com/scorecap/pipeline/internal/ffmpegw"
	"github.com/scorecap/pipeline/internal/metrics"
	"github.com/scorecap/pipeline/internal/pipeline/detect"
	"github.com/scorecap/pipeline/internal/pipeline/export"
	"github.com/scorecap/pipeline/internal/pipeline/extract"
	"github.com/scorecap/pipeline/internal/pipeline/finalize"
	"github.com/scorecap/pipeline/internal/pipeline/rectify"
	"github.com/scorecap/pipeline/internal/pipeline/stitch"
	"github.com/scorecap/pipeline/internal/pipeline/upscale"
	"github.com/scorecap/pipeline/pkg/models"
)

// Orchestrator runs each queued job's stages end to end on a single worker
// goroutine, generalized from the teacher's internal/transcoder/service.go
// ProcessJob/failJob shape combined with internal/scheduler/scheduler.go's
// Start/Stop/loop lifecycle. Unlike the scheduler's priority heap, spec.md
// §5 requires strict FIFO with exactly one worker, so a single buffered
// channel replaces the heap and ticker.
type Orchestrator struct {
	store *Store
	queue chan string
	stop  chan struct{}
	wg    sync.WaitGroup
	log   zerolog.Logger
	cfg   config.JobsConfig

	extract  *extract.Extractor
	audio    *audio.Analyzer
	detect   *detect.Detector
	rectify  *rectify.Rectifier
	stitch   *stitch.Stitcher
	upscale  *upscale.Upscaler
	finalize *finalize.Finalizer
	export   *export.Exporter
}

// NewOrchestrator wires every pipeline-stage collaborator from shared
// config, ffmpeg wrapper, and acceleration probe instances.
func NewOrchestrator(store *Store, cfg *config.Config, logger zerolog.Logger) *Orchestrator {
	ff := ffmpegw.New(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath)
	ac := accel.New(cfg.Accel, cfg.FFmpeg.FFmpegPath)

	return &Orchestrator{
		store: store,
		queue: make(chan string, 256),
		stop:  make(chan struct{}),
		log:   logger,
		cfg:   cfg.Jobs,

		extract:  extract.New(ff, ac, cfg.Jobs),
		audio:    audio.New(ff),
		detect:   detect.New(),
		rectify:  rectify.New(),
		stitch:   stitch.New(),
		upscale:  upscale.New(ff, ac, cfg.Accel),
		finalize: finalize.New(),
		export:   export.New(),
	}
}

// Start launches the single worker goroutine.
func (o *Orchestrator) Start() {
	o.wg.Add(1)
	go o.loop()
}

// Stop signals the worker to drain its current job and exit, then blocks
// until it has.
func (o *Orchestrator) Stop() {
	close(o.stop)
	o.wg.Wait()
}

// Submit counts the job in the jobs-created metric and appends its id to
// the FIFO; it does not change the job's status. The job must already be
// in the store (Put) before Submit is called.
func (o *Orchestrator) Submit(jobID string) {
	metrics.RecordJobCreated()
	o.queue <- jobID
}

func (o *Orchestrator) loop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.stop:
			return
		case id := <-o.queue:
			o.runJob(id)
		}
	}
}

// runJob executes one job's full stage sequence, updating progress at the
// fixed checkpoints spec.md §4.1 documents. A panic anywhere in a stage is
// recovered and converted into a PIPELINE_ERROR job state, matching the
// failJob behavior the teacher's service.go applies to returned errors.
func (o *Orchestrator) runJob(id string) {
	job := o.store.Get(id)
	if job == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.failJob(job, apperr.Pipeline(fmt.Errorf("panic: %v", r), "stage %s panicked", job.CurrentStep))
		}
	}()

	ctx := context.Background()
	start := nowSeconds()

	o.store.Transition(id, func(j *models.Job) {
		j.Status = models.JobStatusRunning
		j.Progress = models.ProgressInit
		j.CurrentStep = "init"
	})
	o.store.AppendLog(id, "job started")

	extractRes, err := runStage(o, id, "extract", func() (extract.Result, error) {
		return o.extract.Run(ctx, job)
	})
	if err != nil {
		o.failJob(job, apperr.Pipeline(err, "stage extract failed"))
		return
	}
	o.checkpoint(id, models.ProgressPostExtract, "extract")

	if job.Options.Export.IncludeRaw {
		o.store.Transition(id, func(j *models.Job) {
			if j.Result == nil {
				j.Result = map[string]any{}
			}
			j.Result["raw_frames"] = extractRes.Frames
		})
	}

	if job.Options.Audio.Enable {
		audioRes, err := o.audio.Run(ctx, job, extractRes.FrameDir)
		if err != nil {
			// Audio is an optional collaborator; demote to a warning per
			// spec.md §7's Dependency-demoted-to-warning semantics rather
			// than failing the whole job.
			o.store.AppendLog(id, fmt.Sprintf("audio stage degraded: %v", err))
		} else if audioRes.Enabled {
			o.store.Transition(id, func(j *models.Job) {
				if j.Result == nil {
					j.Result = map[string]any{}
				}
				j.Result["audio"] = audioRes
			})
		}
	}
	o.checkpoint(id, models.ProgressPostAudio, "audio")

	detectRes, err := runStage(o, id, "detect", func() (detect.Result, error) {
		return o.detect.Run(ctx, job, extractRes.Frames)
	})
	if err != nil {
		o.failJob(job, apperr.Pipeline(err, "stage detect failed"))
		return
	}
	o.checkpoint(id, models.ProgressPostDetect, "detect")

	rectifyRes, err := runStage(o, id, "rectify", func() (rectify.Result, error) {
		return o.rectify.Run(ctx, job, detectRes)
	})
	if err != nil {
		o.failJob(job, apperr.Pipeline(err, "stage rectify failed"))
		return
	}
	o.checkpoint(id, models.ProgressPostRectify, "rectify")

	stitchRes, err := runStage(o, id, "stitch", func() (stitch.Result, error) {
		return o.stitch.Run(ctx, job, rectifyRes)
	})
	if err != nil {
		o.failJob(job, apperr.Pipeline(err, "stage stitch failed"))
		return
	}
	o.checkpoint(id, models.ProgressPostStitch, "stitch")

	upscaleRes := upscale.Result{Dir: stitchRes.Dir, Pages: stitchRes.Pages}
	if job.Options.Upscale.Enable {
		upscaleRes, err = runStage(o, id, "upscale", func() (upscale.Result, error) {
			return o.upscale.Run(ctx, job, stitchRes)
		})
		if err != nil {
			o.failJob(job, apperr.Pipeline(err, "stage upscale failed"))
			return
		}
	}
	o.checkpoint(id, models.ProgressPostUpscale, "upscale")

	finalRes, err := runStage(o, id, "finalize", func() (finalize.Result, error) {
		return o.finalize.Run(ctx, job, upscaleRes)
	})
	if err != nil {
		o.failJob(job, apperr.Pipeline(err, "stage finalize failed"))
		return
	}

	exportRes, err := runStage(o, id, "export", func() (export.Result, error) {
		return o.export.Run(ctx, job, finalRes)
	})
	if err != nil {
		o.failJob(job, apperr.Pipeline(err, "stage export failed"))
		return
	}

	metrics.RecordPagesEmitted(len(finalRes.Pages))

	o.store.Transition(id, func(j *models.Job) {
		j.Status = models.JobStatusDone
		j.Progress = models.ProgressDone
		j.CurrentStep = "done"
		j.Message = "job completed"
		if j.Result == nil {
			j.Result = map[string]any{}
		}
		j.Result["pages"] = finalRes.Pages
		j.Result["files"] = exportRes.Files
	})
	o.store.AppendLog(id, "job completed")
	metrics.RecordJobCompleted("done", nowSeconds()-start)
}

// runStage logs entry/exit and records per-stage duration, keeping the
// per-stage call sites above free of repeated instrumentation. A free
// function rather than a method since Go methods cannot carry their own
// type parameters.
func runStage[T any](o *Orchestrator, id, name string, fn func() (T, error)) (T, error) {
	o.store.Transition(id, func(j *models.Job) { j.CurrentStep = name })
	o.store.AppendLog(id, fmt.Sprintf("stage %s started", name))
	t0 := nowSeconds()
	res, err := fn()
	metrics.RecordStageDuration(name, nowSeconds()-t0)
	if err != nil {
		o.store.AppendLog(id, fmt.Sprintf("stage %s failed: %v", name, err))
		return res, err
	}
	o.store.AppendLog(id, fmt.Sprintf("stage %s finished", name))
	return res, nil
}

// checkpoint advances progress monotonically to one of spec.md §4.1's
// fixed checkpoints.
func (o *Orchestrator) checkpoint(id string, progress float64, step string) {
	o.store.Transition(id, func(j *models.Job) {
		if progress > j.Progress {
			j.Progress = progress
		}
		j.CurrentStep = step
	})
}

func (o *Orchestrator) failJob(job *models.Job, err error) {
	o.store.Transition(job.ID, func(j *models.Job) {
		j.Status = models.JobStatusError
		j.Message = err.Error()
		j.ErrorCode = string(apperr.CodeOf(err))
	})
	o.store.AppendLog(job.ID, fmt.Sprintf("job failed: %v", err))
	metrics.RecordJobCompleted("error", 0)
}

func nowSeconds() float64 {
	return float64(now().UnixNano()) / 1e9
}
