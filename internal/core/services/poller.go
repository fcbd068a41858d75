package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/molvista/molvista/internal/core/domain"
	"github.com/molvista/molvista/internal/core/ports"
)

// StatusPoller keeps the job list fresh while anything is worth watching.
// Polling is active whenever at least one job is pending or running, or the
// polling-requested flag is set (a pipeline was just launched and the new job
// may not have shown up in a snapshot yet). The predicate is re-evaluated
// after every tick; the loop parks when it turns false and wakes on request.
type StatusPoller struct {
	logger   *slog.Logger
	backend  ports.PipelineBackend
	store    *DashboardStore
	interval time.Duration

	mu        sync.Mutex
	requested bool

	wake chan struct{}

	// Correlation tokens: a completion that no longer matches the current
	// generation is stale and discarded. In-flight requests cannot be
	// aborted, only ignored on arrival.
	listGen    atomic.Uint64
	resultsGen atomic.Uint64
}

func NewStatusPoller(logger *slog.Logger, backend ports.PipelineBackend, store *DashboardStore, interval time.Duration) *StatusPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StatusPoller{
		logger:   logger,
		backend:  backend,
		store:    store,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// RequestPolling sets the polling-requested flag and wakes a parked loop.
// Called on pipeline submission, independent of current list contents.
func (p *StatusPoller) RequestPolling() {
	p.mu.Lock()
	p.requested = true
	p.mu.Unlock()
	p.kick()
}

// Refresh triggers an immediate out-of-band tick without waiting for the
// poll timer. Used after a successful cancel request.
func (p *StatusPoller) Refresh() {
	p.kick()
}

func (p *StatusPoller) kick() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *StatusPoller) active() bool {
	p.mu.Lock()
	requested := p.requested
	p.mu.Unlock()
	return requested || p.store.AnyActive()
}

// Run drives the poll loop until ctx is cancelled. The ticker only exists
// while the activity predicate holds; teardown cancels it, so no callback
// can mutate state after the owner is gone.
func (p *StatusPoller) Run(ctx context.Context) error {
	p.logger.Info("status poller started", "interval", p.interval)
	for {
		if !p.active() {
			select {
			case <-ctx.Done():
				p.logger.Info("status poller stopped")
				return nil
			case <-p.wake:
			}
		}

		ticker := time.NewTicker(p.interval)
		p.tick(ctx)
		for p.active() {
			select {
			case <-ctx.Done():
				ticker.Stop()
				p.logger.Info("status poller stopped")
				return nil
			case <-p.wake:
				p.tick(ctx)
			case <-ticker.C:
				p.tick(ctx)
			}
		}
		ticker.Stop()
		p.logger.Debug("no active jobs, polling paused")
	}
}

// tick fetches the job list once and reconciles it into the store. A failed
// tick leaves the previous list untouched and never stops the loop.
func (p *StatusPoller) tick(ctx context.Context) {
	gen := p.listGen.Add(1)

	jobs, err := p.backend.ListJobs(ctx)
	if err != nil {
		p.logger.Warn("job list fetch failed", "error", err)
		p.store.SetNotice("poll_failed", err.Error())
		return
	}
	if p.listGen.Load() != gen {
		p.logger.Debug("job list response superseded, discarding")
		return
	}

	selected, completedNow := p.store.ReplaceJobs(jobs)

	p.mu.Lock()
	p.requested = false
	p.mu.Unlock()

	// Exactly one results fetch per transition into completed, not one per
	// tick while the status stays completed. A job that was already terminal
	// when first listed never transitions, so a selected completed job with
	// no loaded result set also triggers a fetch.
	if selected.Status == domain.JobStatusCompleted && selected.HasResults {
		if _, loaded := p.store.Results(selected.ID); completedNow || !loaded {
			p.fetchResults(ctx, selected.ID)
		}
	}
}

func (p *StatusPoller) fetchResults(ctx context.Context, id domain.JobID) {
	gen := p.resultsGen.Add(1)
	p.logger.Info("job completed, fetching results", "job_id", id)

	go func() {
		rs, err := p.backend.FetchResults(ctx, id)
		if err != nil {
			p.logger.Warn("results fetch failed", "job_id", id, "error", err)
			p.store.SetNotice("results_failed", err.Error())
			return
		}
		if p.resultsGen.Load() != gen {
			p.logger.Debug("results response superseded, discarding", "job_id", id)
			return
		}
		if err := p.store.SetResults(rs); err != nil {
			p.logger.Debug("results arrived for a job that is no longer selected", "job_id", id)
		}
	}()
}

// CancelJob issues a cancel request. Success triggers an immediate refresh;
// the job itself is only mutated once a snapshot reports it cancelled.
// Failure is surfaced as a non-fatal notice.
func (p *StatusPoller) CancelJob(ctx context.Context, id domain.JobID) error {
	if err := p.backend.CancelJob(ctx, id); err != nil {
		p.logger.Warn("cancel request failed", "job_id", id, "error", err)
		p.store.SetNotice("cancel_failed", err.Error())
		return err
	}
	p.logger.Info("cancel requested", "job_id", id)
	p.Refresh()
	return nil
}
