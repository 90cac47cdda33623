package logging

import (
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "JSON format to stdout",
			config: Config{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name:   "Console format to stderr",
			config: Config{Level: "debug", Format: "console", Output: "stderr"},
		},
		{
			name:   "Invalid log level defaults to info",
			config: Config{Level: "invalid", Format: "json", Output: "stdout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	logger, err := NewLogger(Config{Level: "debug", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("test info message")
	logger.Debug("test debug message")
	logger.Warn("test warn message")
	logger.Error("test error message")
}

func TestLoggerWithFields(t *testing.T) {
	logger, err := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if logger.WithField("key", "value") == nil {
		t.Error("Expected non-nil logger from WithField")
	}
	if logger.WithFields(map[string]interface{}{"key1": "value1", "key2": 123}) == nil {
		t.Error("Expected non-nil logger from WithFields")
	}
	if logger.WithRequestID("req-123") == nil {
		t.Error("Expected non-nil logger from WithRequestID")
	}
	if logger.WithJobID("job-456") == nil {
		t.Error("Expected non-nil logger from WithJobID")
	}
	if logger.WithStage("detect") == nil {
		t.Error("Expected non-nil logger from WithStage")
	}
}

func TestLogHTTPRequest(t *testing.T) {
	logger, err := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.LogHTTPRequest("GET", "/jobs/abc", "192.168.1.1", 200, 100*time.Millisecond)
}

func TestLogJobEvent(t *testing.T) {
	logger, err := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.LogJobEvent("job-123", "started", "running", map[string]interface{}{
		"source_kind": "local-file",
	})
}

func TestLogPipelineStage(t *testing.T) {
	logger, err := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.LogPipelineStage("job-123", "detect", 0.45, 2*time.Second)
}

func TestLogSubprocess(t *testing.T) {
	logger, err := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.LogSubprocess("job-123", "ffmpeg -i in.mp4", nil, 500*time.Millisecond)
}

func TestLogAccelSelection(t *testing.T) {
	logger, err := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.LogAccelSelection("cpu", "cuda")
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Errorf("NewDefaultLogger() error = %v", err)
	}
	if logger == nil {
		t.Error("Expected non-nil logger from NewDefaultLogger")
	}
}

func TestNewConsoleLogger(t *testing.T) {
	logger, err := NewConsoleLogger()
	if err != nil {
		t.Errorf("NewConsoleLogger() error = %v", err)
	}
	if logger == nil {
		t.Error("Expected non-nil logger from NewConsoleLogger")
	}
}

func BenchmarkLogInfo(b *testing.B) {
	logger, _ := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message")
	}
}
