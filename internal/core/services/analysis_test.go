package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/molvista/molvista/internal/core/domain"
)

func newTestAnalysis(backend *MockBackend) *AnalysisCoordinator {
	return NewAnalysisCoordinator(context.Background(), testLogger(), backend, nil, time.Hour)
}

func startBatch(t *testing.T, c *AnalysisCoordinator, backend *MockBackend, ids ...domain.JobID) AnalysisBatch {
	t.Helper()
	backend.On("StartAnalysis", mock.Anything, "sim-1", "rmsd").Return(ids, nil)
	batch, err := c.Start(context.Background(), "sim-1", "rmsd")
	require.NoError(t, err)
	require.Len(t, batch.SubTasks, len(ids))
	return batch
}

func TestAnalysis_AllSubTasksCompleteFetchesResultsOnce(t *testing.T) {
	backend := new(MockBackend)
	c := newTestAnalysis(backend)
	batch := startBatch(t, c, backend, "t1", "t2")

	backend.On("JobStatus", mock.Anything, domain.JobID("t1")).
		Return(&domain.Job{ID: "t1", Status: domain.JobStatusCompleted}, nil)
	backend.On("JobStatus", mock.Anything, domain.JobID("t2")).
		Return(&domain.Job{ID: "t2", Status: domain.JobStatusCompleted}, nil)
	backend.On("SimulationResults", mock.Anything, "sim-1").
		Return(&domain.ResultSet{JobID: "sim-1"}, nil)

	done := c.step(context.Background(), batch.ID)
	assert.True(t, done)

	got, ok := c.Batch(batch.ID)
	require.True(t, ok)
	assert.Equal(t, BatchStatusCompleted, got.Status)
	require.NotNil(t, got.Results)
	backend.AssertNumberOfCalls(t, "SimulationResults", 1)
}

func TestAnalysis_AnyFailedSubTaskFailsBatch(t *testing.T) {
	backend := new(MockBackend)
	c := newTestAnalysis(backend)
	batch := startBatch(t, c, backend, "t1", "t2")

	reason := "trajectory truncated"
	backend.On("JobStatus", mock.Anything, domain.JobID("t1")).
		Return(&domain.Job{ID: "t1", Status: domain.JobStatusCompleted}, nil)
	backend.On("JobStatus", mock.Anything, domain.JobID("t2")).
		Return(&domain.Job{ID: "t2", Status: domain.JobStatusFailed, Error: &reason}, nil)

	done := c.step(context.Background(), batch.ID)
	assert.True(t, done)

	got, ok := c.Batch(batch.ID)
	require.True(t, ok)
	assert.Equal(t, BatchStatusFailed, got.Status)
	assert.Equal(t, reason, got.SubTasks[1].Error)
	backend.AssertNotCalled(t, "SimulationResults", mock.Anything, mock.Anything)
}

func TestAnalysis_StatusFetchErrorRetriesNextTick(t *testing.T) {
	backend := new(MockBackend)
	c := newTestAnalysis(backend)
	batch := startBatch(t, c, backend, "t1")

	backend.On("JobStatus", mock.Anything, domain.JobID("t1")).
		Return(nil, &domain.NetworkError{Op: "job status"}).Once()
	backend.On("JobStatus", mock.Anything, domain.JobID("t1")).
		Return(&domain.Job{ID: "t1", Status: domain.JobStatusCompleted}, nil)
	backend.On("SimulationResults", mock.Anything, "sim-1").
		Return(&domain.ResultSet{JobID: "sim-1"}, nil)

	// First step: fetch fails, sub-task stays pending, batch keeps running.
	assert.False(t, c.step(context.Background(), batch.ID))
	got, _ := c.Batch(batch.ID)
	assert.Equal(t, BatchStatusRunning, got.Status)

	// Second step: fetch succeeds and the batch settles.
	assert.True(t, c.step(context.Background(), batch.ID))
	got, _ = c.Batch(batch.ID)
	assert.Equal(t, BatchStatusCompleted, got.Status)
}

func TestAnalysis_TerminalSubTasksNotRePolled(t *testing.T) {
	backend := new(MockBackend)
	c := newTestAnalysis(backend)
	batch := startBatch(t, c, backend, "t1", "t2")

	backend.On("JobStatus", mock.Anything, domain.JobID("t1")).
		Return(&domain.Job{ID: "t1", Status: domain.JobStatusCompleted}, nil)
	backend.On("JobStatus", mock.Anything, domain.JobID("t2")).
		Return(&domain.Job{ID: "t2", Status: domain.JobStatusRunning}, nil).Once()
	backend.On("JobStatus", mock.Anything, domain.JobID("t2")).
		Return(&domain.Job{ID: "t2", Status: domain.JobStatusCompleted}, nil)
	backend.On("SimulationResults", mock.Anything, "sim-1").
		Return(&domain.ResultSet{JobID: "sim-1"}, nil)

	assert.False(t, c.step(context.Background(), batch.ID))
	assert.True(t, c.step(context.Background(), batch.ID))

	// t1 was terminal after the first step; only t2 is polled again.
	backend.AssertNumberOfCalls(t, "JobStatus", 3)
}

func TestAnalysis_PollingSurvivesCallerContextCancel(t *testing.T) {
	backend := new(MockBackend)
	c := NewAnalysisCoordinator(context.Background(), testLogger(), backend, nil, 10*time.Millisecond)

	backend.On("StartAnalysis", mock.Anything, "sim-1", "rmsd").Return([]domain.JobID{"t1"}, nil)
	backend.On("JobStatus", mock.Anything, domain.JobID("t1")).
		Return(&domain.Job{ID: "t1", Status: domain.JobStatusCompleted}, nil)
	backend.On("SimulationResults", mock.Anything, "sim-1").
		Return(&domain.ResultSet{JobID: "sim-1"}, nil)

	// The caller's context ends with the request that started the batch;
	// sub-task polling must keep going regardless.
	reqCtx, cancel := context.WithCancel(context.Background())
	batch, err := c.Start(reqCtx, "sim-1", "rmsd")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		got, ok := c.Batch(batch.ID)
		return ok && got.Status == BatchStatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestAnalysis_StartFailurePropagates(t *testing.T) {
	backend := new(MockBackend)
	c := newTestAnalysis(backend)

	backend.On("StartAnalysis", mock.Anything, "sim-1", "rmsd").
		Return(nil, &domain.ServerError{Op: "start analysis", Status: 500})

	_, err := c.Start(context.Background(), "sim-1", "rmsd")
	require.Error(t, err)
}
