package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scorecap/pipeline/internal/accel"
	"github.com/scorecap/pipeline/internal/config"
	"github.com/scorecap/pipeline/internal/ffmpegw"
	"github.com/scorecap/pipeline/internal/jobstore"
	"github.com/scorecap/pipeline/internal/logging"
	"github.com/scorecap/pipeline/internal/middleware"
	"github.com/scorecap/pipeline/internal/pipeline/extract"
)

// API holds the collaborators every handler needs.
type API struct {
	cfg     *config.Config
	store   *jobstore.Store
	orch    *jobstore.Orchestrator
	extract *extract.Extractor
	accel   *accel.Probe
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.NewDefaultLogger()
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	if err := os.MkdirAll(cfg.Jobs.Root, 0o755); err != nil {
		log.Fatalf("failed to create artifact root: %v", err)
	}

	ff := ffmpegw.New(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath)
	ac := accel.New(cfg.Accel, cfg.FFmpeg.FFmpegPath)

	store := jobstore.NewStore()
	orch := jobstore.NewOrchestrator(store, cfg, logger.Zerolog())
	orch.Start()

	api := &API{
		cfg:     cfg,
		store:   store,
		orch:    orch,
		extract: extract.New(ff, ac, cfg.Jobs),
		accel:   ac,
	}

	router := setupRouter(api, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	orch.Stop()

	logger.Info("server stopped")
}

func setupRouter(api *API, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger.Zerolog()))

	limiter := middleware.NewRateLimiter(20, 40)

	router.GET("/health", api.health)
	router.GET("/runtime", api.runtime)

	router.POST("/preview/frame", api.previewFrame)
	router.POST("/preview/source", api.previewSource)

	router.POST("/jobs", middleware.RateLimit(limiter), api.createJob)
	router.GET("/jobs", api.listJobs)
	router.GET("/jobs/:id", api.getJob)
	router.GET("/jobs/:id/files", api.getJobFiles)
	router.POST("/jobs/:id/review-export", api.reviewExport)
	router.POST("/jobs/:id/capture-crop", api.captureCrop)

	router.GET("/maintenance/cache-usage", api.cacheUsage)
	router.POST("/maintenance/clear-cache", api.clearCache)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.StaticFS("/jobs-files", http.Dir(api.cfg.Jobs.Root))

	return router
}
