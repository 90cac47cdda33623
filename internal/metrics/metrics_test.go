package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/jobs", "200", 0.123)

	counter := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/jobs", "200"))
	if counter != 1.0 {
		t.Errorf("Expected counter to be 1.0, got %f", counter)
	}
}

func TestRecordJobCreated(t *testing.T) {
	JobsCreatedTotal.Add(0) // ensure series exists
	before := testutil.ToFloat64(JobsCreatedTotal)

	RecordJobCreated()
	RecordJobCreated()
	RecordJobCreated()

	after := testutil.ToFloat64(JobsCreatedTotal)
	if after-before != 3.0 {
		t.Errorf("Expected created counter to increase by 3.0, got delta %f", after-before)
	}
}

func TestRecordJobCompleted(t *testing.T) {
	JobsCompletedTotal.Reset()

	RecordJobCompleted("done", 120.5)
	RecordJobCompleted("error", 30.2)

	done := testutil.ToFloat64(JobsCompletedTotal.WithLabelValues("done"))
	if done != 1.0 {
		t.Errorf("Expected done counter to be 1.0, got %f", done)
	}

	failed := testutil.ToFloat64(JobsCompletedTotal.WithLabelValues("error"))
	if failed != 1.0 {
		t.Errorf("Expected error counter to be 1.0, got %f", failed)
	}
}

func TestUpdateJobMetrics(t *testing.T) {
	UpdateJobMetrics(1, 4)

	if v := testutil.ToFloat64(JobsInProgress); v != 1.0 {
		t.Errorf("Expected in-progress gauge 1.0, got %f", v)
	}
	if v := testutil.ToFloat64(JobsQueueDepth); v != 4.0 {
		t.Errorf("Expected queue depth gauge 4.0, got %f", v)
	}
}

func TestRecordStageDuration(t *testing.T) {
	RecordStageDuration("detect", 1.5)
}

func TestRecordFrameCounts(t *testing.T) {
	FramesDeduped.Add(0) // ensure series exists
	before := testutil.ToFloat64(FramesDeduped)

	RecordFrameCounts(120, 8)

	after := testutil.ToFloat64(FramesDeduped)
	if after-before != 8.0 {
		t.Errorf("Expected deduped counter to increase by 8.0, got delta %f", after-before)
	}
}

func TestRecordPagesEmitted(t *testing.T) {
	RecordPagesEmitted(3)
}

func TestSetAccelResizeBackend(t *testing.T) {
	known := []string{"cpu", "hw-scaler", "gpu-direct-a"}
	SetAccelResizeBackend("hw-scaler", known)

	if v := testutil.ToFloat64(AccelResizeBackend.WithLabelValues("hw-scaler")); v != 1.0 {
		t.Errorf("Expected selected backend gauge 1.0, got %f", v)
	}
	if v := testutil.ToFloat64(AccelResizeBackend.WithLabelValues("cpu")); v != 0.0 {
		t.Errorf("Expected unselected backend gauge 0.0, got %f", v)
	}
}
