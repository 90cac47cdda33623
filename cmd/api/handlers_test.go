package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorecap/pipeline/internal/accel"
	"github.com/scorecap/pipeline/internal/config"
	"github.com/scorecap/pipeline/internal/ffmpegw"
	"github.com/scorecap/pipeline/internal/jobstore"
	"github.com/scorecap/pipeline/internal/logging"
	"github.com/scorecap/pipeline/internal/pipeline/extract"
	"github.com/scorecap/pipeline/pkg/models"
)

func newTestAPI(t *testing.T) (*API, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Jobs:   config.JobsConfig{Root: root, CacheDir: filepath.Join(root, "cache"), TempDir: filepath.Join(root, "tmp")},
		FFmpeg: config.FFmpegConfig{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"},
		Accel:  config.AccelConfig{HWAccelPreference: "auto", GPUResizePreference: "auto", UpscaleEngine: "auto"},
	}

	ff := ffmpegw.New(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath)
	ac := accel.New(cfg.Accel, cfg.FFmpeg.FFmpegPath)
	store := jobstore.NewStore()
	orch := jobstore.NewOrchestrator(store, cfg, testLogger(t).Zerolog())

	api := &API{
		cfg:     cfg,
		store:   store,
		orch:    orch,
		extract: extract.New(ff, ac, cfg.Jobs),
		accel:   ac,
	}
	router := setupRouter(api, testLogger(t))
	return api, router
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.NewLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func TestHealthReturnsOK(t *testing.T) {
	_, router := newTestAPI(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateJobRejectsMissingLocator(t *testing.T) {
	_, router := newTestAPI(t)
	body, _ := json.Marshal(map[string]any{"source": map[string]any{"kind": "local-file"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJobSucceedsAndIsRetrievable(t *testing.T) {
	_, router := newTestAPI(t)
	body, _ := json.Marshal(map[string]any{
		"source": map[string]any{"kind": "local-file", "locator": "/tmp/video.mp4"},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	jobID := resp["job_id"]
	require.NotEmpty(t, jobID)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil)
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestGetJobUnknownIDReturns404(t *testing.T) {
	_, router := newTestAPI(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearCacheRejectsWhileJobRunning(t *testing.T) {
	api, router := newTestAPI(t)
	api.store.Put(&models.Job{ID: "running-job", Status: models.JobStatusRunning})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/maintenance/clear-cache", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCacheUsageReturnsZeroForEmptyRoot(t *testing.T) {
	_, router := newTestAPI(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/maintenance/cache-usage", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bytes":0,"paths":0}`, w.Body.String())
}

func TestCaptureCropRejectsRunningJob(t *testing.T) {
	api, router := newTestAPI(t)
	api.store.Put(&models.Job{ID: "j1", Status: models.JobStatusRunning, ArtifactDir: t.TempDir()})

	body, _ := json.Marshal(map[string]any{
		"image_path": "page.png",
		"points": []map[string]float64{
			{"x": 0, "y": 0}, {"x": 20, "y": 0}, {"x": 20, "y": 20}, {"x": 0, "y": 20},
		},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/j1/capture-crop", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}
