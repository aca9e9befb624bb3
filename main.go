package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/podcast-transcribe/backend/internal/api"
	"github.com/podcast-transcribe/backend/internal/audio"
	"github.com/podcast-transcribe/backend/internal/config"
	"github.com/podcast-transcribe/backend/internal/db"
	"github.com/podcast-transcribe/backend/internal/job"
	"github.com/podcast-transcribe/backend/internal/search"
	"github.com/podcast-transcribe/backend/internal/speech"
	"github.com/podcast-transcribe/backend/internal/store"
	"github.com/podcast-transcribe/backend/internal/transcribe"
)

func main() {
	cfg := config.Load()

	// Ensure data directory exists
	os.MkdirAll(cfg.DataPath, 0755)

	// Initialize database
	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Object store for processed audio, served on /blobs/
	blobs, err := store.NewFilesystemObjectStore(cfg.BlobPath, cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	// Audio pipeline pieces
	fetcher := audio.NewFetcher(cfg.MaxDownloadBytes, cfg.DebugAudioPath)
	transcoder := audio.NewTranscoder(cfg.DebugAudioPath)

	// Provider client
	speechClient := speech.NewClient(cfg.SpeechRegion, cfg.SpeechAPIVersion, cfg.SpeechKey)

	// Pipeline runner and orchestration services
	runner := job.NewRunner(database.Conn())
	defer runner.Stop()

	submitter := transcribe.NewSubmitter(database, blobs, fetcher, transcoder, speechClient, runner)
	runner.RegisterHandler(submitter.RunPipeline)

	synchronizer := transcribe.NewSynchronizer(database, speechClient)
	searcher := search.NewClient(cfg.ListenNotesURL, cfg.ListenNotesKey, database)

	// Create router
	router := api.NewRouter(cfg, database, blobs, searcher, submitter, synchronizer, runner)

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Blob path: %s", cfg.BlobPath)
	log.Printf("Speech region: %s (api %s)", cfg.SpeechRegion, cfg.SpeechAPIVersion)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		runner.Stop()
		database.Close()
		os.Exit(0)
	}()

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
