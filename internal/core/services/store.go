package services

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/molvista/molvista/internal/core/domain"
)

// Notice is a transient, dismissible error surfaced to the user. Network
// failures land here instead of crashing the view.
type Notice struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// DashboardState is a point-in-time copy of everything the shell renders.
type DashboardState struct {
	Jobs          []domain.Job      `json:"jobs"`
	SelectedJobID domain.JobID      `json:"selected_job_id,omitempty"`
	Results       *domain.ResultSet `json:"results,omitempty"`
	Frame         int               `json:"frame"`
	Playing       bool              `json:"playing"`
	Notice        *Notice           `json:"notice,omitempty"`
}

// pauser lets the store halt playback on selection changes without a
// dependency cycle on the playback controller.
type pauser interface {
	Pause()
	Playing() bool
}

// DashboardStore owns the shared mutable dashboard state: the job list
// (newest first), the selected job, and the result set of the selected job.
// It is the single writer; the poller, launcher and HTTP handlers all mutate
// through it, and every mutation is announced on the hub.
type DashboardStore struct {
	logger   *slog.Logger
	hub      *Hub
	frames   *FrameSync
	playback pauser

	mu       sync.Mutex
	jobs     []domain.Job
	selected domain.JobID
	results  *domain.ResultSet
	notice   *Notice
}

func NewDashboardStore(logger *slog.Logger, hub *Hub, frames *FrameSync) *DashboardStore {
	return &DashboardStore{
		logger: logger,
		hub:    hub,
		frames: frames,
	}
}

// SetPlayback wires the playback controller. Optional; tests skip it.
func (s *DashboardStore) SetPlayback(p pauser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = p
}

// Snapshot returns a copy of the current state.
func (s *DashboardStore) Snapshot() DashboardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]domain.Job, len(s.jobs))
	copy(jobs, s.jobs)

	playing := false
	if s.playback != nil {
		playing = s.playback.Playing()
	}
	return DashboardState{
		Jobs:          jobs,
		SelectedJobID: s.selected,
		Results:       s.results,
		Frame:         s.frames.Frame(),
		Playing:       playing,
		Notice:        s.notice,
	}
}

// Jobs returns a copy of the job list, newest first.
func (s *DashboardStore) Jobs() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]domain.Job, len(s.jobs))
	copy(jobs, s.jobs)
	return jobs
}

// SelectedJob returns the currently selected job, if any.
func (s *DashboardStore) SelectedJob() (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

func (s *DashboardStore) selectedLocked() (domain.Job, bool) {
	if s.selected == "" {
		return domain.Job{}, false
	}
	for _, j := range s.jobs {
		if j.ID == s.selected {
			return j, true
		}
	}
	return domain.Job{}, false
}

// Select switches the selected job. The result set belongs to the previous
// selection and is discarded; the frame cursor resets and playback stops.
func (s *DashboardStore) Select(id domain.JobID) error {
	s.mu.Lock()
	found := false
	for _, j := range s.jobs {
		if j.ID == id {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return domain.ErrJobNotFound
	}
	if s.selected == id {
		s.mu.Unlock()
		return nil
	}
	s.selected = id
	s.results = nil
	playback := s.playback
	s.mu.Unlock()

	if playback != nil {
		playback.Pause()
	}
	s.frames.Reset(0)
	s.publish(ChangeSelection, map[string]any{"selected_job_id": id})
	return nil
}

// PrependJob inserts a freshly launched job at the head of the list and
// selects it. This is the only optimistic local mutation; everything after
// it comes from server snapshots.
func (s *DashboardStore) PrependJob(job domain.Job) {
	s.mu.Lock()
	s.jobs = append([]domain.Job{job}, s.jobs...)
	s.selected = job.ID
	s.results = nil
	// Snapshot under the lock so the announced list matches this mutation.
	jobs := make([]domain.Job, len(s.jobs))
	copy(jobs, s.jobs)
	playback := s.playback
	s.mu.Unlock()

	if playback != nil {
		playback.Pause()
	}
	s.frames.Reset(0)
	s.publish(ChangeJobs, map[string]any{"jobs": jobs})
	s.publish(ChangeSelection, map[string]any{"selected_job_id": job.ID})
}

// ReplaceJobs applies a fresh server snapshot of the job list. The selected
// job's entry is replaced by the matching entry from the new list; jobs the
// server no longer reports are retained at the tail, since jobs are never
// deleted client-side. Returns the selected job after reconciliation and
// whether it just transitioned into completed (the trigger for exactly one
// results fetch).
func (s *DashboardStore) ReplaceJobs(list []domain.Job) (domain.Job, bool) {
	s.mu.Lock()

	prevStatus := make(map[domain.JobID]domain.JobStatus, len(s.jobs))
	for _, j := range s.jobs {
		prevStatus[j.ID] = j.Status
	}

	next := make([]domain.Job, len(list))
	copy(next, list)
	seen := make(map[domain.JobID]struct{}, len(list))
	for _, j := range list {
		seen[j.ID] = struct{}{}
	}
	for _, j := range s.jobs {
		if _, ok := seen[j.ID]; !ok {
			next = append(next, j)
		}
	}
	s.jobs = next

	sel, ok := s.selectedLocked()
	transitioned := false
	if ok {
		was, known := prevStatus[sel.ID]
		transitioned = sel.Status == domain.JobStatusCompleted &&
			(!known || was != domain.JobStatusCompleted)
	}
	jobs := make([]domain.Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	s.publish(ChangeJobs, map[string]any{"jobs": jobs})
	return sel, ok && transitioned
}

// SetResults installs the result set for the selected job. A result set for
// any other job is stale and dropped.
func (s *DashboardStore) SetResults(rs *domain.ResultSet) error {
	s.mu.Lock()
	if rs == nil || rs.JobID != s.selected {
		s.mu.Unlock()
		s.logger.Debug("discarding results for non-selected job")
		return domain.ErrStaleResponse
	}
	s.results = rs
	playback := s.playback
	s.mu.Unlock()

	if playback != nil {
		playback.Pause()
	}
	s.frames.Reset(rs.FrameCount())
	s.publish(ChangeResults, map[string]any{"results": rs})
	return nil
}

// Results returns the loaded result set for the given job, if it is the
// selected one and its results have arrived.
func (s *DashboardStore) Results(id domain.JobID) (*domain.ResultSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil || s.results.JobID != id {
		return nil, false
	}
	return s.results, true
}

// AnyActive reports whether any job still needs polling.
func (s *DashboardStore) AnyActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if !j.Status.Terminal() {
			return true
		}
	}
	return false
}

// SetNotice surfaces a transient, dismissible error.
func (s *DashboardStore) SetNotice(kind, message string) {
	n := &Notice{Kind: kind, Message: message, At: time.Now()}
	s.mu.Lock()
	s.notice = n
	s.mu.Unlock()
	s.publish(ChangeNotice, map[string]any{"notice": n})
}

// DismissNotice clears the transient error.
func (s *DashboardStore) DismissNotice() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
	s.publish(ChangeNotice, map[string]any{"notice": nil})
}

func (s *DashboardStore) publish(t ChangeType, payload map[string]any) {
	if s.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal change payload", "type", t, "error", err)
		return
	}
	s.hub.Publish(Change{Type: t, Data: string(data), Timestamp: time.Now().UnixMilli()})
}
