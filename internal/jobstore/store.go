// Package jobstore implements the Job Orchestrator & Store (spec.md §4.1):
// an in-memory job map guarded by one mutex, plus a single background
// worker goroutine that runs the pipeline stages in order, generalized from
// the teacher's internal/transcoder/service.go ProcessJob/failJob shape
// (there: a TranscoderService.ProcessJob running one DB-backed job end to
// end; here: an in-memory Job run end to end by one worker, FIFO per
// spec.md §5).
package jobstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scorecap/pipeline/pkg/models"
)

// Store is the in-memory job map. All reads and writes acquire mu briefly;
// no operation holds the lock across I/O (spec.md §5).
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*models.Job)}
}

// Put inserts or replaces a job.
func (s *Store) Put(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Get returns the job by id, or nil if unknown. Callers must not read any
// field off the returned *models.Job once the lock is released — the
// orchestrator's Transition mutates Job in place concurrently. Use
// Snapshot or Result for a safe, locked copy; Get exists for callers that
// only need identity/existence (e.g. passing the pointer to a stage that
// itself takes the store's lock).
func (s *Store) Get(id string) *models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// Snapshot builds a job's public view while holding the read lock, so the
// copy is safe to read after the lock is released even while the
// orchestrator's Transition concurrently mutates the same Job (spec.md:221,
// "All read and write operations acquire it briefly").
func (s *Store) Snapshot(id string) (models.JobSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return models.JobSnapshot{}, false
	}
	return j.Snapshot(), true
}

// Snapshots returns the public view of every known job, built under one
// read lock so no snapshot races a concurrent Transition.
func (s *Store) Snapshots() []models.JobSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.JobSnapshot, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Snapshot())
	}
	return out
}

// Result returns a locked copy of a job's result map, or (nil, false) if
// the job is unknown. Used by handlers that only need Result, not the
// full snapshot (e.g. GET /jobs/{id}/files).
func (s *Store) Result(id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	result := make(map[string]any, len(j.Result))
	for k, v := range j.Result {
		result[k] = v
	}
	return result, true
}

// AnyActive reports whether any job is in {queued, running}, used by
// cache-clear's conflict check.
func (s *Store) AnyActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.Status == models.JobStatusQueued || j.Status == models.JobStatusRunning {
			return true
		}
	}
	return false
}

// Transition mutates a job's status/progress/step/message atomically under
// the store's lock, enforcing the monotonic-progress invariant.
func (s *Store) Transition(id string, fn func(j *models.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	prev := j.Progress
	fn(j)
	if j.Progress < prev {
		j.Progress = prev
	}
	j.UpdatedAt = now()
}

// AppendLog appends one line to a job's bounded log atomically.
func (s *Store) AppendLog(id, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	j.AppendLog(line)
	j.UpdatedAt = now()
}

// NewJobID generates a fresh job id.
func NewJobID() string {
	return uuid.New().String()
}

func now() time.Time { return time.Now() }
