package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/molvista/molvista/internal/core/domain"
	"github.com/molvista/molvista/internal/core/ports"
)

type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// SubTask tracks one analysis job spawned for a simulation.
type SubTask struct {
	JobID  domain.JobID     `json:"job_id"`
	Status domain.JobStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// AnalysisBatch is a fan-out of analysis sub-tasks over one simulation.
// The batch fails iff at least one sub-task fails; it completes once every
// sub-task finished, even when some of them errored along the way.
type AnalysisBatch struct {
	ID           string            `json:"id"`
	SimulationID string            `json:"simulation_id"`
	AnalysisType string            `json:"analysis_type"`
	Status       BatchStatus       `json:"status"`
	SubTasks     []SubTask         `json:"sub_tasks"`
	Results      *domain.ResultSet `json:"results,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
}

// AnalysisCoordinator drives the simulation-centric API variant: start an
// analysis, poll each sub-task until terminal, then fetch the aggregated
// simulation results once.
type AnalysisCoordinator struct {
	logger   *slog.Logger
	backend  ports.PipelineBackend
	hub      *Hub
	interval time.Duration

	// Process-lifetime context for the poll goroutines. A batch outlives the
	// HTTP request that started it, so polling cannot run on the request ctx.
	ctx context.Context

	mu      sync.Mutex
	batches map[string]*AnalysisBatch
}

func NewAnalysisCoordinator(ctx context.Context, logger *slog.Logger, backend ports.PipelineBackend, hub *Hub, interval time.Duration) *AnalysisCoordinator {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &AnalysisCoordinator{
		logger:   logger,
		backend:  backend,
		hub:      hub,
		interval: interval,
		ctx:      ctx,
		batches:  make(map[string]*AnalysisBatch),
	}
}

// Start kicks off the analysis and begins polling its sub-tasks. The
// synchronous start call uses the caller's ctx; polling runs on the
// coordinator's own context and stops with the process, not the request.
func (c *AnalysisCoordinator) Start(ctx context.Context, simulationID, analysisType string) (AnalysisBatch, error) {
	ids, err := c.backend.StartAnalysis(ctx, simulationID, analysisType)
	if err != nil {
		c.logger.Warn("analysis start failed", "simulation_id", simulationID, "error", err)
		return AnalysisBatch{}, err
	}

	batch := &AnalysisBatch{
		ID:           uuid.NewString(),
		SimulationID: simulationID,
		AnalysisType: analysisType,
		Status:       BatchStatusRunning,
		StartedAt:    time.Now(),
	}
	for _, id := range ids {
		batch.SubTasks = append(batch.SubTasks, SubTask{JobID: id, Status: domain.JobStatusPending})
	}

	c.mu.Lock()
	c.batches[batch.ID] = batch
	snapshot := *batch
	c.mu.Unlock()

	c.logger.Info("analysis started",
		"batch_id", batch.ID, "simulation_id", simulationID, "sub_tasks", len(ids))

	go c.poll(c.ctx, batch.ID)
	return snapshot, nil
}

// Batch returns a copy of a batch by ID.
func (c *AnalysisCoordinator) Batch(id string) (AnalysisBatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.batches[id]
	if !ok {
		return AnalysisBatch{}, false
	}
	return *b, true
}

func (c *AnalysisCoordinator) poll(ctx context.Context, batchID string) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := c.step(ctx, batchID); done {
				return
			}
		}
	}
}

// step polls every non-terminal sub-task once. Returns true when the batch
// reached a terminal status.
func (c *AnalysisCoordinator) step(ctx context.Context, batchID string) bool {
	c.mu.Lock()
	batch, ok := c.batches[batchID]
	if !ok {
		c.mu.Unlock()
		return true
	}
	pending := make([]domain.JobID, 0, len(batch.SubTasks))
	for _, st := range batch.SubTasks {
		if !st.Status.Terminal() {
			pending = append(pending, st.JobID)
		}
	}
	c.mu.Unlock()

	for _, id := range pending {
		job, err := c.backend.JobStatus(ctx, id)
		if err != nil {
			// One failed status fetch is not a sub-task failure; the next
			// tick retries it.
			c.logger.Warn("sub-task status fetch failed", "job_id", id, "error", err)
			continue
		}
		c.applySubTask(batchID, job)
	}

	return c.finalize(ctx, batchID)
}

func (c *AnalysisCoordinator) applySubTask(batchID string, job *domain.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, ok := c.batches[batchID]
	if !ok {
		return
	}
	for i := range batch.SubTasks {
		if batch.SubTasks[i].JobID != job.ID {
			continue
		}
		batch.SubTasks[i].Status = job.Status
		if job.Status == domain.JobStatusFailed && job.Error != nil {
			batch.SubTasks[i].Error = *job.Error
		}
		break
	}
}

// finalize checks whether all sub-tasks are terminal and, if so, settles the
// batch: failed iff any sub-task failed, otherwise fetch results exactly once
// and mark completed.
func (c *AnalysisCoordinator) finalize(ctx context.Context, batchID string) bool {
	c.mu.Lock()
	batch, ok := c.batches[batchID]
	if !ok {
		c.mu.Unlock()
		return true
	}

	anyFailed := false
	for _, st := range batch.SubTasks {
		if !st.Status.Terminal() {
			c.mu.Unlock()
			return false
		}
		if st.Status == domain.JobStatusFailed {
			anyFailed = true
		}
	}

	if anyFailed {
		batch.Status = BatchStatusFailed
		snapshot := *batch
		c.mu.Unlock()
		c.logger.Warn("analysis batch failed", "batch_id", batchID)
		c.publish(snapshot)
		return true
	}

	simID := batch.SimulationID
	c.mu.Unlock()

	rs, err := c.backend.SimulationResults(ctx, simID)

	c.mu.Lock()
	batch, ok = c.batches[batchID]
	if !ok {
		c.mu.Unlock()
		return true
	}
	if err != nil {
		c.logger.Warn("simulation results fetch failed", "batch_id", batchID, "error", err)
		batch.Status = BatchStatusFailed
	} else {
		batch.Status = BatchStatusCompleted
		batch.Results = rs
	}
	snapshot := *batch
	c.mu.Unlock()

	if err == nil {
		c.logger.Info("analysis batch completed", "batch_id", batchID)
	}
	c.publish(snapshot)
	return true
}

func (c *AnalysisCoordinator) publish(batch AnalysisBatch) {
	if c.hub == nil {
		return
	}
	// Results stay out of the event payload; clients fetch them by batch ID.
	batch.Results = nil
	data, err := json.Marshal(batch)
	if err != nil {
		return
	}
	c.hub.Publish(Change{Type: ChangeAnalysis, Data: string(data), Timestamp: time.Now().UnixMilli()})
}
