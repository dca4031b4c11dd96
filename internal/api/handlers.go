package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/proofscout/amazon-proof-scraper/internal/progress"
	"github.com/proofscout/amazon-proof-scraper/internal/runner"
)

type Handlers struct {
	runs   *RunManager
	store  *progress.Store
	logger *slog.Logger
}

func NewHandlers(runs *RunManager, store *progress.Store, logger *slog.Logger) *Handlers {
	return &Handlers{
		runs:   runs,
		store:  store,
		logger: logger,
	}
}

// Routes mounts the API endpoints on a chi router.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/progress", h.GetProgress)
		r.Post("/runs", h.StartRun)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)
	})
}

// HealthResponse reports liveness plus the runner state.
type HealthResponse struct {
	Status string `json:"status"`
	Runner string `json:"runner"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Runner: h.runs.RunnerState().String(),
	})
}

// ProgressResponse describes checkpoint position and result counts.
type ProgressResponse struct {
	LastChunk int            `json:"last_chunk"`
	Stats     map[string]int `json:"stats"`
}

func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, ProgressResponse{
		LastChunk: h.store.LastChunk(),
		Stats:     h.store.Stats(),
	})
}

// StartRunResponse carries the ID of a freshly started run.
type StartRunResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.StartRun()
	if err != nil {
		if errors.Is(err, runner.ErrRunActive) {
			h.respondError(w, http.StatusConflict, "a run is already in progress")
			return
		}
		h.logger.Error("failed to start run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, StartRunResponse{
		RunID:   run.ID,
		Status:  run.Status,
		Message: "Run started",
	})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, err := h.runs.GetRun(runID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runs.ListRuns())
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
