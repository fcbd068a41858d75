package domain

import (
	"errors"
	"time"
)

type JobID string

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs stay in the
// list but no longer keep the poller active.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type PipelineType string

const (
	PipelineScaffoldHopping  PipelineType = "scaffold_hopping"
	PipelineMolecularScoring PipelineType = "molecular_scoring"
	PipelineDocking          PipelineType = "docking"
	PipelineMDSimulation     PipelineType = "md_simulation"
	PipelineFull             PipelineType = "full_pipeline"
)

// Job is one backend-tracked execution of a pipeline. The client only
// observes it: aside from the initial insert after a launch, every field is
// overwritten wholesale by server snapshots.
type Job struct {
	ID           JobID        `json:"id"`
	Name         string       `json:"name"`
	PipelineType PipelineType `json:"pipeline_type"`
	Status       JobStatus    `json:"status"`
	Progress     int          `json:"progress"`
	StartedAt    time.Time    `json:"started_at"`
	CurrentStep  int          `json:"current_step"`
	HasResults   bool         `json:"has_results"`
	Error        *string      `json:"error,omitempty"`
}

// Steps returns the ordered step labels for the job's pipeline type.
// Labels are derived from the type, never stored per job.
func (j Job) Steps() []string {
	return PipelineSteps(j.PipelineType)
}

// PipelineSteps maps a pipeline type to its ordered step labels.
func PipelineSteps(t PipelineType) []string {
	switch t {
	case PipelineScaffoldHopping:
		return []string{"Scaffold Hopping", "Candidate Filtering"}
	case PipelineMolecularScoring:
		return []string{"Descriptor Calculation", "Scoring"}
	case PipelineDocking:
		return []string{"Receptor Preparation", "Docking", "Pose Ranking"}
	case PipelineMDSimulation:
		return []string{"System Setup", "Equilibration", "Production MD", "PCA Analysis"}
	case PipelineFull:
		return []string{"Scaffold Hopping", "Scoring", "Docking", "MD Simulation", "PCA Analysis"}
	}
	return nil
}

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrNoJobSelected   = errors.New("no job selected")
	ErrNoResultSet     = errors.New("no result set loaded")
	ErrStaleResponse   = errors.New("stale response discarded")
	ErrUnknownPipeline = errors.New("unknown pipeline type")
)
