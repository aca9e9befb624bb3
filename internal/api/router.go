package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/podcast-transcribe/backend/internal/api/handlers"
	"github.com/podcast-transcribe/backend/internal/api/middleware"
	"github.com/podcast-transcribe/backend/internal/config"
	"github.com/podcast-transcribe/backend/internal/job"
	"github.com/podcast-transcribe/backend/internal/store"
)

const maxJSONBodySize = 1 << 20 // 1 MiB

func NewRouter(
	cfg *config.Config,
	episodes store.EpisodeStore,
	blobs *store.FilesystemObjectStore,
	searcher handlers.Searcher,
	submitter handlers.Submitter,
	synchronizer handlers.Synchronizer,
	runner *job.Runner,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))

	// Handlers
	episodeHandler := handlers.NewEpisodeHandler(episodes, searcher, submitter, synchronizer)
	runHandler := handlers.NewRunHandler(runner)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Episodes
		r.Get("/episodes", episodeHandler.Search)
		r.Get("/episodes/{id}", episodeHandler.Get)
		r.Get("/episodes/{id}/transcription", episodeHandler.GetTranscription)
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(maxJSONBodySize))
			r.Post("/episodes/{id}/transcription", episodeHandler.SubmitTranscription)
		})

		// Pipeline runs
		r.Get("/runs", runHandler.ListRuns)
		r.Get("/runs/{id}", runHandler.GetRun)
	})

	// Processed audio, fetched by the transcription provider via the
	// URLs the object store hands out.
	blobServer := http.StripPrefix("/blobs/", http.FileServer(http.Dir(blobs.BasePath())))
	r.Get("/blobs/*", blobServer.ServeHTTP)

	return r
}
