// Package config loads process configuration from an optional YAML file
// plus environment variable overrides (spec.md §6), using viper the way
// the teacher's internal/config package does.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the process.
type Config struct {
	Server ServerConfig
	Jobs   JobsConfig
	FFmpeg FFmpegConfig
	Accel  AccelConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// JobsConfig holds the artifact-root and job-lifecycle configuration.
type JobsConfig struct {
	Root     string // artifact root; <root>/<job-id>/... per spec.md §6
	CacheDir string // streaming-URL download cache, keyed by URL hash prefix
	TempDir  string
}

// FFmpegConfig holds transcoder/prober binary paths.
type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
}

// AccelConfig holds the Runtime Acceleration Probe's environment overrides.
type AccelConfig struct {
	HWAccelPreference   string // comma-separated; "auto", "none", "off"
	GPUResizePreference string // auto, cuda, opencl, cpu
	UpscaleEngine       string // auto, neural, gpu, hw
	NeuralEnabled       bool
	NeuralRepoPath      string
	NeuralWeightsPath   string
	NeuralAllowCPU      bool
	NeuralTileSize      int
	NeuralTilePad       int
	SharpenPostUpscale  bool
}

// Load reads configuration from a YAML file (if it exists) and environment
// variables, falling back to documented defaults for anything unset.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("SCORECAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if _, statErr := os.Stat(configPath); statErr == nil {
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadDefaults returns configuration built entirely from defaults and
// environment variables, for processes run without a config file.
func LoadDefaults() (*Config, error) {
	viper.SetEnvPrefix("SCORECAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "5m")
	viper.SetDefault("server.shutdownTimeout", "10s")

	viper.SetDefault("jobs.root", "/var/lib/scorecap/jobs")
	viper.SetDefault("jobs.cacheDir", "/var/lib/scorecap/cache")
	viper.SetDefault("jobs.tempDir", "/tmp/scorecap")

	viper.SetDefault("ffmpeg.ffmpegPath", "ffmpeg")
	viper.SetDefault("ffmpeg.ffprobePath", "ffprobe")

	viper.SetDefault("accel.hwAccelPreference", "auto")
	viper.SetDefault("accel.gpuResizePreference", "auto")
	viper.SetDefault("accel.upscaleEngine", "auto")
	viper.SetDefault("accel.neuralEnabled", false)
	viper.SetDefault("accel.neuralRepoPath", "")
	viper.SetDefault("accel.neuralWeightsPath", "")
	viper.SetDefault("accel.neuralAllowCPU", false)
	viper.SetDefault("accel.neuralTileSize", 256)
	viper.SetDefault("accel.neuralTilePad", 16)
	viper.SetDefault("accel.sharpenPostUpscale", true)
}
