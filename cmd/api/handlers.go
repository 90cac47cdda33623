package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/internal/jobstore"
	"github.com/scorecap/pipeline/pkg/models"
)

// respondErr maps a typed apperr.Error to the HTTP status spec.md §6
// documents: 400 invalid input, 404 unknown id, 409 concurrent-state
// conflict, 500 everything else (pipeline/dependency/transient failures
// are all internal to the process at this surface).
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeConflict:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (api *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (api *API) runtime(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	snap := api.accel.Get(ctx)
	c.JSON(http.StatusOK, snap.View())
}

type previewFrameRequest struct {
	Source   models.Source `json:"source" binding:"required"`
	StartSec float64       `json:"start_sec"`
}

func (api *API) previewFrame(c *gin.Context) {
	var req previewFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.InvalidInput("malformed request body: %v", err))
		return
	}

	ctx := c.Request.Context()
	sourcePath, _, err := api.extract.ResolveSource(ctx, req.Source)
	if err != nil {
		respondErr(c, err)
		return
	}

	previewDir := filepath.Join(api.cfg.Jobs.Root, "_preview", uuid.New().String())
	if err := ensureDir(previewDir); err != nil {
		respondErr(c, fmt.Errorf("create preview dir: %w", err))
		return
	}

	outPath := filepath.Join(previewDir, "frame.png")
	if err := api.extract.PreviewFrame(ctx, sourcePath, outPath, req.StartSec); err != nil {
		respondErr(c, err)
		return
	}

	rel, err := filepath.Rel(api.cfg.Jobs.Root, outPath)
	if err != nil {
		respondErr(c, fmt.Errorf("compute relative path: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path": outPath,
		"url":  "/jobs-files/" + filepath.ToSlash(rel),
	})
}

type previewSourceRequest struct {
	Source models.Source `json:"source" binding:"required"`
}

func (api *API) previewSource(c *gin.Context) {
	var req previewSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.InvalidInput("malformed request body: %v", err))
		return
	}

	path, cacheHit, err := api.extract.ResolveSource(c.Request.Context(), req.Source)
	if err != nil {
		respondErr(c, err)
		return
	}

	resp := gin.H{"path": path, "cache_hit": cacheHit}
	if rel, err := filepath.Rel(api.cfg.Jobs.Root, path); err == nil {
		resp["url"] = "/jobs-files/" + filepath.ToSlash(rel)
	}
	c.JSON(http.StatusOK, resp)
}

type createJobRequest struct {
	Source  models.Source     `json:"source" binding:"required"`
	Options models.JobOptions `json:"options"`
}

func (api *API) createJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.InvalidInput("malformed request body: %v", err))
		return
	}
	if req.Source.Locator == "" {
		respondErr(c, apperr.InvalidInput("source.locator is required"))
		return
	}

	opts := req.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		respondErr(c, apperr.InvalidInput("%v", err))
		return
	}

	id := jobstore.NewJobID()
	artifactDir := filepath.Join(api.cfg.Jobs.Root, id)
	if err := ensureDir(artifactDir); err != nil {
		respondErr(c, fmt.Errorf("create artifact dir: %w", err))
		return
	}

	now := time.Now()
	job := &models.Job{
		ID:          id,
		Source:      req.Source,
		Options:     opts,
		ArtifactDir: artifactDir,
		Status:      models.JobStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	api.store.Put(job)
	api.orch.Submit(id)

	c.JSON(http.StatusCreated, gin.H{"job_id": id})
}

func (api *API) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": api.store.Snapshots()})
}

func (api *API) getJob(c *gin.Context) {
	snap, ok := api.store.Snapshot(c.Param("id"))
	if !ok {
		respondErr(c, apperr.NotFound("job %s not found", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (api *API) getJobFiles(c *gin.Context) {
	result, ok := api.store.Result(c.Param("id"))
	if !ok {
		respondErr(c, apperr.NotFound("job %s not found", c.Param("id")))
		return
	}
	resp := gin.H{}
	if v, ok := result["pages"]; ok {
		resp["pages"] = v
	}
	if v, ok := result["files"]; ok {
		resp["files"] = v
	}
	c.JSON(http.StatusOK, resp)
}

type reviewExportRequest struct {
	PageIndices []int                 `json:"page_indices" binding:"required"`
	Formats     []models.ExportFormat `json:"formats"`
}

func (api *API) reviewExport(c *gin.Context) {
	job := api.store.Get(c.Param("id"))
	if job == nil {
		respondErr(c, apperr.NotFound("job %s not found", c.Param("id")))
		return
	}

	var req reviewExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.InvalidInput("malformed request body: %v", err))
		return
	}

	res, err := jobstore.ReviewExport(job, req.PageIndices, req.Formats)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": res.Files})
}

type captureCropRequest struct {
	ImagePath string         `json:"image_path" binding:"required"`
	Points    []models.Point `json:"points" binding:"required"`
}

func (api *API) captureCrop(c *gin.Context) {
	job := api.store.Get(c.Param("id"))
	if job == nil {
		respondErr(c, apperr.NotFound("job %s not found", c.Param("id")))
		return
	}
	if job.Status == models.JobStatusQueued || job.Status == models.JobStatusRunning {
		respondErr(c, apperr.Conflict("job %s is still %s", job.ID, job.Status))
		return
	}

	var req captureCropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.InvalidInput("malformed request body: %v", err))
		return
	}

	imgPath := req.ImagePath
	if !filepath.IsAbs(imgPath) {
		imgPath = filepath.Join(job.ArtifactDir, imgPath)
	}

	res, err := jobstore.CropCapture(api.store, job, imgPath, req.Points)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": res.Path, "width": res.Width, "height": res.Height})
}

func (api *API) cacheUsage(c *gin.Context) {
	usage, err := jobstore.ComputeCacheUsage(api.cfg.Jobs.Root)
	if err != nil {
		respondErr(c, fmt.Errorf("compute cache usage: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"bytes": usage.Bytes, "paths": usage.Paths})
}

func (api *API) clearCache(c *gin.Context) {
	result, err := jobstore.ClearCache(api.store, api.cfg.Jobs.Root)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bytes_reclaimed": result.BytesReclaimed,
		"cleared":         result.Cleared,
		"skip_reasons":    result.SkipReasons,
	})
}
