package models

import "time"

// JobStatus is a Job's lifecycle state. Transitions form a DAG:
// queued -> running -> {done, error}.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Fixed progress checkpoints the orchestrator reports between stages.
const (
	ProgressInit        = 0.01
	ProgressPostExtract = 0.20
	ProgressPostAudio   = 0.38
	ProgressPostDetect  = 0.45
	ProgressPostRectify = 0.68
	ProgressPostStitch  = 0.82
	ProgressPostUpscale = 0.92
	ProgressDone        = 1.00
)

// SourceKind identifies where a job's video comes from.
type SourceKind string

const (
	SourceLocalFile SourceKind = "local-file"
	SourceStreamURL SourceKind = "stream-url"
)

// Source describes the job's input video.
type Source struct {
	Kind    SourceKind `json:"kind"`
	Locator string     `json:"locator"`
}

// Job is the orchestrator's unit of work. A Job owns exactly one artifact
// directory and its subtree; the log is append-only and bounded to its
// tail, and Result is replaced wholesale, never partially mutated.
type Job struct {
	ID          string
	Source      Source
	Options     JobOptions
	ArtifactDir string
	Status      JobStatus
	Progress    float64
	CurrentStep string
	Message     string
	Log         []string
	Result      map[string]any
	ErrorCode   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// maxLogLines bounds the in-memory log retained per job; only the tail is
// kept on append, the public snapshot further trims to the last 20.
const maxLogLines = 500

// logTailLines is how many trailing log lines a JobSnapshot exposes.
const logTailLines = 20

// AppendLog appends a message to the bounded log, trimming the head when
// the retained tail grows past maxLogLines.
func (j *Job) AppendLog(msg string) {
	j.Log = append(j.Log, msg)
	if len(j.Log) > maxLogLines {
		j.Log = j.Log[len(j.Log)-maxLogLines:]
	}
}

// Snapshot returns the public view of a job: status, progress, step,
// message, result, and the last 20 log lines.
func (j *Job) Snapshot() JobSnapshot {
	tail := j.Log
	if len(tail) > logTailLines {
		tail = tail[len(tail)-logTailLines:]
	}
	tailCopy := make([]string, len(tail))
	copy(tailCopy, tail)

	result := make(map[string]any, len(j.Result))
	for k, v := range j.Result {
		result[k] = v
	}

	return JobSnapshot{
		JobID:       j.ID,
		Status:      j.Status,
		Progress:    j.Progress,
		CurrentStep: j.CurrentStep,
		Message:     j.Message,
		Result:      result,
		ErrorCode:   j.ErrorCode,
		LogTail:     tailCopy,
	}
}

// JobSnapshot is the read-only view returned by GET /jobs/{id}.
type JobSnapshot struct {
	JobID       string         `json:"job_id"`
	Status      JobStatus      `json:"status"`
	Progress    float64        `json:"progress"`
	CurrentStep string         `json:"current_step"`
	Message     string         `json:"message"`
	Result      map[string]any `json:"result"`
	ErrorCode   string         `json:"error_code,omitempty"`
	LogTail     []string       `json:"log_tail"`
}
