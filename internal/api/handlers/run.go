package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/podcast-transcribe/backend/internal/job"
)

type RunHandler struct {
	runner *job.Runner
}

func NewRunHandler(runner *job.Runner) *RunHandler {
	return &RunHandler{runner: runner}
}

// ListRuns returns all pipeline runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runner.ListRuns()
	if err != nil {
		jsonError(w, "failed to list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*job.Run{}
	}
	jsonResponse(w, runs, http.StatusOK)
}

// GetRun returns a single pipeline run by ID
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing run ID", http.StatusBadRequest)
		return
	}

	run, err := h.runner.GetRun(id)
	if err != nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, run, http.StatusOK)
}
