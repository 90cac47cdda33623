package apperr

import (
	"errors"
	"testing"
)

func TestInvalidInputCode(t *testing.T) {
	err := InvalidInput("window.end %f must be greater than window.start %f", 1.0, 2.0)
	if CodeOf(err) != CodeInvalidInput {
		t.Errorf("expected CodeInvalidInput, got %s", CodeOf(err))
	}
	if err.Error() == "" {
		t.Error("expected non-empty message")
	}
}

func TestConflictCode(t *testing.T) {
	err := Conflict("job %s is already running", "abc123")
	if CodeOf(err) != CodeConflict {
		t.Errorf("expected CodeConflict, got %s", CodeOf(err))
	}
}

func TestNotFoundCode(t *testing.T) {
	err := NotFound("job %s not found", "abc123")
	if CodeOf(err) != CodeNotFound {
		t.Errorf("expected CodeNotFound, got %s", CodeOf(err))
	}
}

func TestPipelineWrapsCause(t *testing.T) {
	cause := errors.New("ffmpeg exited with status 1")
	err := Pipeline(cause, "frame extraction failed")

	if CodeOf(err) != CodePipelineFailure {
		t.Errorf("expected CodePipelineFailure, got %s", CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("expected Pipeline error to unwrap to cause")
	}
}

func TestDependencyWrapsCause(t *testing.T) {
	cause := errors.New("neural weights not found")
	err := Dependency(cause, "upscale engine %q unavailable", "neural")

	if CodeOf(err) != CodeDependency {
		t.Errorf("expected CodeDependency, got %s", CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("expected Dependency error to unwrap to cause")
	}
}

func TestTransientWrapsCause(t *testing.T) {
	cause := errors.New("cuda device busy")
	err := Transient(cause, "gpu-direct-a resize failed")

	if CodeOf(err) != CodeTransient {
		t.Errorf("expected CodeTransient, got %s", CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("expected Transient error to unwrap to cause")
	}
}

func TestCodeOfUntypedErrorDefaultsToPipelineFailure(t *testing.T) {
	plain := errors.New("something broke")
	if CodeOf(plain) != CodePipelineFailure {
		t.Errorf("expected untyped error to default to CodePipelineFailure, got %s", CodeOf(plain))
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Pipeline(cause, "stage %s failed", "rectify")

	want := "stage rectify failed: exit status 1"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
