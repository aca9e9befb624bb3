package transcribe

import (
	"context"
	"fmt"
	"log"

	"github.com/podcast-transcribe/backend/internal/episode"
	"github.com/podcast-transcribe/backend/internal/speech"
	"github.com/podcast-transcribe/backend/internal/store"
)

// Synchronizer pulls a submitted job's status from the provider and
// reflects it onto the episode record. It is invoked on demand when a
// caller asks for the transcription result; there is no background poller.
type Synchronizer struct {
	episodes store.EpisodeStore
	speech   SpeechClient
}

func NewSynchronizer(episodes store.EpisodeStore, speech SpeechClient) *Synchronizer {
	return &Synchronizer{episodes: episodes, speech: speech}
}

// Sync polls the provider for the episode's job and updates the record.
// It returns the provider status string. Errors leave the record exactly
// as it was; a failed sync never corrupts state.
func (s *Synchronizer) Sync(ctx context.Context, episodeID string) (string, error) {
	if episodeID == "" {
		return "", ErrEmptyEpisodeID
	}

	ep, err := s.episodes.Get(ctx, episodeID)
	if err != nil {
		return "", err
	}
	if ep.ProviderJobURI == "" {
		return "", fmt.Errorf("episode %s: %w", episodeID, ErrNoJobURI)
	}

	status, err := s.speech.Status(ctx, ep.ProviderJobURI)
	if err != nil {
		return "", fmt.Errorf("poll provider: %w", err)
	}
	log.Printf("[sync] episode %s provider status: %s", episodeID, status)

	switch status {
	case speech.JobRunning:
		return string(status), s.setStatus(ctx, ep, episode.StatusRunning)
	case speech.JobFailed:
		return string(status), s.setStatus(ctx, ep, episode.StatusFailed)
	case speech.JobNotStarted:
		// Unexpected regression on the provider side; the job URI is kept
		// so a later sync can still reach the job.
		log.Printf("[sync] episode %s: provider reports job not started", episodeID)
		return string(status), s.setStatus(ctx, ep, episode.StatusNotStarted)
	case speech.JobSucceeded:
		if ep.TranscriptionStatus == episode.StatusSucceeded && ep.TranscriptionResult != "" {
			// Already hydrated; no need to refetch the artifact.
			return string(status), nil
		}
		if err := s.hydrateResult(ctx, ep); err != nil {
			return "", err
		}
		return string(status), nil
	}

	// Unknown status: log and leave the record untouched rather than
	// flapping it on a transient provider quirk.
	log.Printf("[sync] episode %s: unknown provider status, record unchanged", episodeID)
	return string(status), nil
}

func (s *Synchronizer) setStatus(ctx context.Context, ep *episode.Episode, to episode.Status) error {
	if ep.TranscriptionStatus == to {
		return nil
	}
	ep.TranscriptionStatus = to
	if to != episode.StatusSucceeded {
		ep.TranscriptionResult = ""
	}
	_, err := s.episodes.Upsert(ctx, ep)
	return err
}

// hydrateResult fetches the transcript for a succeeded job and persists
// transcript and Succeeded status in a single write, so the record never
// claims success without text.
func (s *Synchronizer) hydrateResult(ctx context.Context, ep *episode.Episode) error {
	files, err := s.speech.ResultFiles(ctx, ep.ProviderJobURI)
	if err != nil {
		return fmt.Errorf("fetch result manifest: %w", err)
	}

	var contentURL string
	for _, f := range files {
		if f.Kind == "Transcription" {
			contentURL = f.Links.ContentURL
			break
		}
	}
	if contentURL == "" {
		return fmt.Errorf("result manifest for episode %s: %w: no transcription artifact", ep.ID, speech.ErrMalformedResponse)
	}

	text, err := s.speech.Transcript(ctx, contentURL)
	if err != nil {
		return fmt.Errorf("fetch transcript: %w", err)
	}

	ep.TranscriptionResult = text
	ep.TranscriptionStatus = episode.StatusSucceeded
	if _, err := s.episodes.Upsert(ctx, ep); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}
	log.Printf("[sync] episode %s transcript hydrated (%d chars)", ep.ID, len(text))
	return nil
}
