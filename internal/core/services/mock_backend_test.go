package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/molvista/molvista/internal/core/domain"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ListJobs(ctx context.Context) ([]domain.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *MockBackend) FetchResults(ctx context.Context, id domain.JobID) (*domain.ResultSet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResultSet), args.Error(1)
}

func (m *MockBackend) StartPipeline(ctx context.Context, cfg domain.PipelineConfig) (*domain.Job, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockBackend) CancelJob(ctx context.Context, id domain.JobID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) StartAnalysis(ctx context.Context, simulationID string, analysisType string) ([]domain.JobID, error) {
	args := m.Called(ctx, simulationID, analysisType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.JobID), args.Error(1)
}

func (m *MockBackend) JobStatus(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockBackend) SimulationResults(ctx context.Context, simulationID string) (*domain.ResultSet, error) {
	args := m.Called(ctx, simulationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResultSet), args.Error(1)
}
