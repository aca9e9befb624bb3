package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/podcast-transcribe/backend/internal/episode"
	"github.com/podcast-transcribe/backend/internal/search"
	"github.com/podcast-transcribe/backend/internal/store"
	"github.com/podcast-transcribe/backend/internal/transcribe"
)

// Searcher finds episodes by title and registers new ones in the store.
type Searcher interface {
	SearchByTitle(ctx context.Context, titleQuery string) ([]*episode.Episode, error)
}

// Submitter accepts transcription submissions.
type Submitter interface {
	Submit(ctx context.Context, episodeID string) (accepted bool, message string, err error)
}

// Synchronizer refreshes an episode's transcription status from the provider.
type Synchronizer interface {
	Sync(ctx context.Context, episodeID string) (string, error)
}

type EpisodeHandler struct {
	episodes  store.EpisodeStore
	searcher  Searcher
	submitter Submitter
	sync      Synchronizer
}

func NewEpisodeHandler(episodes store.EpisodeStore, searcher Searcher, submitter Submitter, sync Synchronizer) *EpisodeHandler {
	return &EpisodeHandler{episodes: episodes, searcher: searcher, submitter: submitter, sync: sync}
}

// Search looks up episodes by title, creating records for new hits.
func (h *EpisodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		jsonError(w, "missing name query parameter", http.StatusBadRequest)
		return
	}

	episodes, err := h.searcher.SearchByTitle(r.Context(), name)
	if err != nil {
		log.Printf("[api] episode search %q failed: %v", name, err)
		jsonError(w, "episode search failed", http.StatusBadGateway)
		return
	}

	summaries := make([]episode.Summary, 0, len(episodes))
	for _, ep := range episodes {
		summaries = append(summaries, ep.Summarize())
	}
	jsonResponse(w, summaries, http.StatusOK)
}

// Get returns a single episode record.
func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing episode ID", http.StatusBadRequest)
		return
	}

	ep, err := h.episodes.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "episode not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to load episode", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, ep, http.StatusOK)
}

// List returns all tracked episodes.
func (h *EpisodeHandler) List(w http.ResponseWriter, r *http.Request) {
	episodes, err := h.episodes.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list episodes", http.StatusInternalServerError)
		return
	}
	summaries := make([]episode.Summary, 0, len(episodes))
	for _, ep := range episodes {
		summaries = append(summaries, ep.Summarize())
	}
	jsonResponse(w, summaries, http.StatusOK)
}

type submitResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// SubmitTranscription accepts a transcription job for an episode. The
// pipeline runs detached; the response only acknowledges acceptance.
func (h *EpisodeHandler) SubmitTranscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing episode ID", http.StatusBadRequest)
		return
	}

	accepted, message, err := h.submitter.Submit(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "episode not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, transcribe.ErrEmptyEpisodeID) {
		jsonError(w, "missing episode ID", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("[api] submit transcription for %s failed: %v", id, err)
		jsonError(w, "failed to submit transcription", http.StatusInternalServerError)
		return
	}

	status := http.StatusAccepted
	if !accepted {
		status = http.StatusConflict
	}
	jsonResponse(w, submitResponse{Accepted: accepted, Message: message}, status)
}

type transcriptionResponse struct {
	Status     episode.Status `json:"status"`
	Transcript string         `json:"transcript,omitempty"`
}

// GetTranscription syncs the episode's provider status, then returns the
// current state and the transcript when available.
func (h *EpisodeHandler) GetTranscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing episode ID", http.StatusBadRequest)
		return
	}

	if _, err := h.sync.Sync(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			jsonError(w, "episode not found", http.StatusNotFound)
			return
		case errors.Is(err, transcribe.ErrNoJobURI):
			// Nothing submitted yet: fall through and report the stored
			// state instead of failing the read.
			log.Printf("[api] episode %s has no provider job yet", id)
		default:
			log.Printf("[api] sync for %s failed: %v", id, err)
			jsonError(w, "failed to refresh transcription status", http.StatusBadGateway)
			return
		}
	}

	ep, err := h.episodes.Get(r.Context(), id)
	if err != nil {
		jsonError(w, "failed to load episode", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, transcriptionResponse{
		Status:     ep.TranscriptionStatus,
		Transcript: ep.TranscriptionResult,
	}, http.StatusOK)
}

// compile-time check: the production search client satisfies Searcher.
var _ Searcher = (*search.Client)(nil)

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
