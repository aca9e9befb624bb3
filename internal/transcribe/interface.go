package transcribe

import (
	"context"
	"errors"

	"github.com/podcast-transcribe/backend/internal/job"
	"github.com/podcast-transcribe/backend/internal/speech"
)

// ErrEmptyEpisodeID means a caller passed a blank episode identifier.
var ErrEmptyEpisodeID = errors.New("episode id is required")

// ErrNoJobURI means the episode has never been submitted to the provider,
// so there is nothing to synchronize.
var ErrNoJobURI = errors.New("episode has no provider job to sync")

// SpeechClient is the provider surface the orchestrator and synchronizer
// depend on.
type SpeechClient interface {
	Submit(ctx context.Context, audioURL, displayName string) (string, error)
	Status(ctx context.Context, jobURI string) (speech.JobStatus, error)
	ResultFiles(ctx context.Context, jobURI string) ([]speech.ResultFile, error)
	Transcript(ctx context.Context, contentURL string) (string, error)
}

// AudioFetcher downloads a bounded prefix of a remote audio file into a
// temp file owned by the caller.
type AudioFetcher interface {
	Download(ctx context.Context, audioURL string) (string, error)
}

// AudioTranscoder converts downloaded audio into the submission format.
type AudioTranscoder interface {
	Transcode(ctx context.Context, inputPath string) (string, error)
}

// RunLauncher starts a detached pipeline run for an episode.
type RunLauncher interface {
	Launch(episodeID string) (*job.Run, error)
}
