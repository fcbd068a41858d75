package ports

import (
	"context"

	"github.com/molvista/molvista/internal/core/domain"
)

// PipelineBackend abstracts the external compute backend that actually runs
// the molecular-design pipelines. The dashboard never mutates backend state
// beyond launching and cancelling; everything else is observation.
type PipelineBackend interface {
	// ListJobs retrieves the full job list, newest first not guaranteed.
	ListJobs(ctx context.Context) ([]domain.Job, error)

	// FetchResults retrieves the result set of one job. Only meaningful for
	// jobs that reported status completed.
	FetchResults(ctx context.Context, id domain.JobID) (*domain.ResultSet, error)

	// StartPipeline submits a new pipeline run and returns the created job.
	StartPipeline(ctx context.Context, cfg domain.PipelineConfig) (*domain.Job, error)

	// CancelJob asks the backend to cancel a job. The job's state is only
	// updated once a later snapshot reports it cancelled.
	CancelJob(ctx context.Context, id domain.JobID) error

	// StartAnalysis kicks off post-simulation analysis sub-tasks and returns
	// their job IDs (simulation-centric API variant).
	StartAnalysis(ctx context.Context, simulationID string, analysisType string) ([]domain.JobID, error)

	// JobStatus fetches a single job snapshot (used for analysis sub-tasks).
	JobStatus(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// SimulationResults fetches the aggregated result set of a simulation.
	SimulationResults(ctx context.Context, simulationID string) (*domain.ResultSet, error)
}
