package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/molvista/molvista/internal/core/domain"
	"github.com/molvista/molvista/internal/core/services"
)

// Server is the dashboard shell's transport: it exposes the owned state to
// the browser as JSON plus an SSE change feed. All mutations route through
// the same store/poller/launcher the rest of the process uses, so the
// single-writer discipline holds regardless of how many browser tabs watch.
type Server struct {
	logger   *slog.Logger
	router   *mux.Router
	store    *services.DashboardStore
	frames   *services.FrameSync
	playback *services.PlaybackController
	launcher *services.LaunchCoordinator
	poller   *services.StatusPoller
	analysis *services.AnalysisCoordinator
	hub      *services.Hub
}

func NewServer(
	logger *slog.Logger,
	store *services.DashboardStore,
	frames *services.FrameSync,
	playback *services.PlaybackController,
	launcher *services.LaunchCoordinator,
	poller *services.StatusPoller,
	analysis *services.AnalysisCoordinator,
	hub *services.Hub,
) *Server {
	s := &Server{
		logger:   logger,
		router:   mux.NewRouter(),
		store:    store,
		frames:   frames,
		playback: playback,
		launcher: launcher,
		poller:   poller,
		analysis: analysis,
		hub:      hub,
	}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	api.HandleFunc("/jobs", s.listJobs).Methods(http.MethodGet)
	api.HandleFunc("/pipelines", s.launchPipeline).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/cancel", s.cancelJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/select", s.selectJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/results", s.getResults).Methods(http.MethodGet)
	api.HandleFunc("/frame", s.setFrame).Methods(http.MethodPost)
	api.HandleFunc("/playback", s.setPlayback).Methods(http.MethodPost)
	api.HandleFunc("/notice/dismiss", s.dismissNotice).Methods(http.MethodPost)
	api.HandleFunc("/simulations/{id}/analyze", s.startAnalysis).Methods(http.MethodPost)
	api.HandleFunc("/analyses/{id}", s.getAnalysis).Methods(http.MethodGet)

	// SSE bypasses mux's response handling; raw handler.
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "path", r.URL.Path, "panic", rec)
				s.respondError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.Jobs())
}

func (s *Server) launchPipeline(w http.ResponseWriter, r *http.Request) {
	var cfg domain.PipelineConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.launcher.Submit(r.Context(), cfg)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.respondBackendError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, job)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(mux.Vars(r)["id"])
	if err := s.poller.CancelJob(r.Context(), id); err != nil {
		s.respondBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) selectJob(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(mux.Vars(r)["id"])
	if err := s.store.Select(id); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	// The selection may be an already-completed job whose results were never
	// loaded; the poller's out-of-band tick takes care of that.
	s.poller.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(mux.Vars(r)["id"])
	rs, ok := s.store.Results(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "results not loaded for this job")
		return
	}
	s.respondJSON(w, http.StatusOK, rs)
}

func (s *Server) setFrame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Frame int `json:"frame"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	applied := s.frames.SetFrame(req.Frame)
	s.respondJSON(w, http.StatusOK, map[string]int{"frame": applied})
}

func (s *Server) setPlayback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Action {
	case "play":
		s.playback.Play()
	case "pause":
		s.playback.Pause()
	default:
		s.respondError(w, http.StatusBadRequest, "action must be play or pause")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"playing": s.playback.Playing()})
}

func (s *Server) dismissNotice(w http.ResponseWriter, r *http.Request) {
	s.store.DismissNotice()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startAnalysis(w http.ResponseWriter, r *http.Request) {
	simID := mux.Vars(r)["id"]
	analysisType := r.URL.Query().Get("analysis_type")
	if analysisType == "" {
		s.respondError(w, http.StatusBadRequest, "analysis_type is required")
		return
	}

	batch, err := s.analysis.Start(r.Context(), simID, analysisType)
	if err != nil {
		s.respondBackendError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, batch)
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.analysis.Batch(mux.Vars(r)["id"])
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown analysis batch")
		return
	}
	s.respondJSON(w, http.StatusOK, batch)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "molvista",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondBackendError maps backend failure kinds onto the gateway surface:
// the backend being down is 502, the backend rejecting the call keeps its
// own status semantics as 502 with detail.
func (s *Server) respondBackendError(w http.ResponseWriter, err error) {
	var serr *domain.ServerError
	if errors.As(err, &serr) {
		s.respondError(w, http.StatusBadGateway, serr.Error())
		return
	}
	var nerr *domain.NetworkError
	if errors.As(err, &nerr) {
		s.respondError(w, http.StatusBadGateway, nerr.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
