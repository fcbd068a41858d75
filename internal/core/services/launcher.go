package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/molvista/molvista/internal/core/domain"
	"github.com/molvista/molvista/internal/core/ports"
)

// LaunchCoordinator validates and submits new pipeline runs. Validation
// happens entirely client-side: an invalid config never reaches the network.
type LaunchCoordinator struct {
	logger   *slog.Logger
	backend  ports.PipelineBackend
	store    *DashboardStore
	poller   *StatusPoller
	validate *validator.Validate
}

func NewLaunchCoordinator(logger *slog.Logger, backend ports.PipelineBackend, store *DashboardStore, poller *StatusPoller) *LaunchCoordinator {
	return &LaunchCoordinator{
		logger:   logger,
		backend:  backend,
		store:    store,
		poller:   poller,
		validate: validator.New(),
	}
}

// Submit launches a pipeline. On success the created job is prepended to the
// job list (the display is newest first), becomes the selected job, and the
// poller is nudged so the job's progress shows up without waiting for it to
// appear in a snapshot. On failure nothing is added and the caller keeps the
// form values.
func (l *LaunchCoordinator) Submit(ctx context.Context, cfg domain.PipelineConfig) (*domain.Job, error) {
	if err := l.validateConfig(cfg); err != nil {
		return nil, err
	}

	job, err := l.backend.StartPipeline(ctx, cfg)
	if err != nil {
		l.logger.Warn("pipeline submission failed", "name", cfg.Name, "error", err)
		l.store.SetNotice("launch_failed", err.Error())
		return nil, err
	}

	l.logger.Info("pipeline launched",
		"job_id", job.ID, "pipeline", cfg.PipelineType, "name", cfg.Name)

	l.store.PrependJob(*job)
	l.poller.RequestPolling()
	return job, nil
}

func (l *LaunchCoordinator) validateConfig(cfg domain.PipelineConfig) error {
	if err := l.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return &domain.ValidationError{
				Field:  strings.ToLower(first.Field()),
				Reason: first.Tag(),
			}
		}
		return &domain.ValidationError{Field: "config", Reason: err.Error()}
	}

	if cfg.PipelineType.RequiresProtein() && strings.TrimSpace(cfg.TargetProtein) == "" {
		return &domain.ValidationError{
			Field:  "target_protein",
			Reason: "required for " + string(cfg.PipelineType),
		}
	}
	return nil
}
