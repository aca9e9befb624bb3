package transcribe

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/podcast-transcribe/backend/internal/episode"
	"github.com/podcast-transcribe/backend/internal/job"
	"github.com/podcast-transcribe/backend/internal/store"
)

// Submitter drives an episode from NotStarted to Submitted: it answers
// submission requests immediately and runs the acquire/transcode/upload/
// submit pipeline on a detached run.
type Submitter struct {
	episodes   store.EpisodeStore
	objects    store.ObjectStore
	fetcher    AudioFetcher
	transcoder AudioTranscoder
	speech     SpeechClient
	runner     RunLauncher
}

func NewSubmitter(
	episodes store.EpisodeStore,
	objects store.ObjectStore,
	fetcher AudioFetcher,
	transcoder AudioTranscoder,
	speech SpeechClient,
	runner RunLauncher,
) *Submitter {
	return &Submitter{
		episodes:   episodes,
		objects:    objects,
		fetcher:    fetcher,
		transcoder: transcoder,
		speech:     speech,
		runner:     runner,
	}
}

// audioKey is the deterministic object-store key for an episode's
// processed audio. Its presence is the idempotency marker that lets a
// retry skip download and transcode.
func audioKey(episodeID string) string {
	return episodeID + "_audio.mp3"
}

// Submit validates the episode's current state and, when eligible,
// launches the pipeline. It returns before any pipeline work happens.
func (s *Submitter) Submit(ctx context.Context, episodeID string) (accepted bool, message string, err error) {
	if episodeID == "" {
		return false, "episode id is required", ErrEmptyEpisodeID
	}

	ep, err := s.episodes.Get(ctx, episodeID)
	if err != nil {
		return false, fmt.Sprintf("episode %s not found", episodeID), err
	}

	switch {
	case ep.TranscriptionStatus == episode.StatusSucceeded && ep.TranscriptionResult != "":
		return true, "transcript already generated", nil
	case episode.InFlight(ep.TranscriptionStatus):
		return true, "transcription already in progress, check back later", nil
	case ep.TranscriptionStatus == episode.StatusFailed:
		return false, "previous transcription attempt failed", nil
	}

	// Atomic claim: of N concurrent submitters exactly one moves the
	// episode to Processing and launches a pipeline.
	claimed, err := s.episodes.ClaimForProcessing(ctx, episodeID)
	if err != nil {
		return false, "failed to accept submission", err
	}
	if !claimed {
		return true, "transcription already in progress, check back later", nil
	}

	run, err := s.runner.Launch(episodeID)
	if err != nil {
		// The claim went through but no pipeline will run; roll the
		// episode to Failed so the record is not stuck in Processing.
		s.markFailed(ctx, episodeID, err)
		return false, "failed to launch transcription pipeline", err
	}

	log.Printf("[submit] episode %s accepted, pipeline run %s", episodeID, run.ID)
	return true, "transcription submitted, check back later for results", nil
}

// RunPipeline is the detached pipeline body, registered as the runner's
// handler. Steps are strictly sequential; any failure marks the episode
// Failed and surfaces the step's error on the run record.
func (s *Submitter) RunPipeline(ctx context.Context, run *job.Run) error {
	err := s.runPipeline(ctx, run.EpisodeID)
	if err != nil {
		s.markFailed(ctx, run.EpisodeID, err)
	}
	return err
}

func (s *Submitter) runPipeline(ctx context.Context, episodeID string) error {
	ep, err := s.episodes.Get(ctx, episodeID)
	if err != nil {
		return fmt.Errorf("load episode: %w", err)
	}

	var tempFiles []string
	defer func() {
		for _, path := range tempFiles {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Printf("[submit] failed to remove temp file %s: %v", path, err)
			}
		}
	}()

	key := audioKey(ep.ID)
	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check processed audio: %w", err)
	}

	var audioURL string
	if exists {
		// Audio from an earlier attempt is already in place: skip
		// acquisition and transcoding entirely.
		audioURL = s.objects.URL(key)
		log.Printf("[submit] episode %s: processed audio already uploaded, skipping acquisition", ep.ID)
	} else {
		rawPath, err := s.fetcher.Download(ctx, ep.AudioURL)
		if err != nil {
			return fmt.Errorf("download audio: %w", err)
		}
		tempFiles = append(tempFiles, rawPath)

		processedPath, err := s.transcoder.Transcode(ctx, rawPath)
		if err != nil {
			return fmt.Errorf("transcode audio: %w", err)
		}
		tempFiles = append(tempFiles, processedPath)

		f, err := os.Open(processedPath)
		if err != nil {
			return fmt.Errorf("open processed audio: %w", err)
		}
		audioURL, err = s.objects.Upload(ctx, f, key)
		f.Close()
		if err != nil {
			return fmt.Errorf("upload processed audio: %w", err)
		}
	}

	if ep.ProcessedAudioBlobURI != audioURL {
		ep.ProcessedAudioBlobURI = audioURL
		ep, err = s.episodes.Upsert(ctx, ep)
		if err != nil {
			return fmt.Errorf("persist processed audio uri: %w", err)
		}
	}

	jobURI, err := s.speech.Submit(ctx, audioURL, ep.ID+"-transcription")
	if err != nil {
		return fmt.Errorf("submit to provider: %w", err)
	}

	ep.ProviderJobURI = jobURI
	ep.TranscriptionStatus = episode.StatusSubmitted
	if _, err := s.episodes.Upsert(ctx, ep); err != nil {
		return fmt.Errorf("persist submission: %w", err)
	}

	log.Printf("[submit] episode %s submitted to provider, job %s", ep.ID, jobURI)
	return nil
}

// markFailed transitions the episode to Failed on a fresh load so the
// write does not collide with the version the pipeline was holding.
func (s *Submitter) markFailed(ctx context.Context, episodeID string, cause error) {
	ep, err := s.episodes.Get(ctx, episodeID)
	if err != nil {
		log.Printf("[submit] episode %s failed (%v) but could not be loaded: %v", episodeID, cause, err)
		return
	}
	ep.TranscriptionStatus = episode.StatusFailed
	if _, err := s.episodes.Upsert(ctx, ep); err != nil {
		log.Printf("[submit] episode %s failed (%v) but could not be marked: %v", episodeID, cause, err)
	}
}
