package transcribe

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/podcast-transcribe/backend/internal/episode"
	"github.com/podcast-transcribe/backend/internal/job"
	"github.com/podcast-transcribe/backend/internal/store"
)

type submitFixture struct {
	episodes   *memEpisodeStore
	objects    *memObjectStore
	fetcher    *fakeFetcher
	transcoder *fakeTranscoder
	speech     *fakeSpeech
	launcher   *fakeLauncher
	submitter  *Submitter
}

func newSubmitFixture() *submitFixture {
	f := &submitFixture{
		episodes:   newMemEpisodeStore(),
		objects:    newMemObjectStore(),
		fetcher:    &fakeFetcher{},
		transcoder: &fakeTranscoder{},
		speech:     &fakeSpeech{},
		launcher:   &fakeLauncher{},
	}
	f.submitter = NewSubmitter(f.episodes, f.objects, f.fetcher, f.transcoder, f.speech, f.launcher)
	return f
}

func (f *submitFixture) seed(id string, status episode.Status) *episode.Episode {
	ep := &episode.Episode{
		ID:                  id,
		AudioURL:            "https://cdn.local/" + id + ".mp3",
		TranscriptionStatus: status,
	}
	created, _ := f.episodes.Create(context.Background(), ep)
	return created
}

func TestSubmitEmptyIDRejected(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	accepted, _, err := f.submitter.Submit(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyEpisodeID)
	require.False(t, accepted)
}

func TestSubmitUnknownEpisodeNotFound(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	accepted, _, err := f.submitter.Submit(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.False(t, accepted)
}

func TestSubmitNotStartedLaunchesPipeline(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	f.seed("e1", episode.StatusNotStarted)

	accepted, msg, err := f.submitter.Submit(context.Background(), "e1")
	require.NoError(t, err)
	require.True(t, accepted)
	require.Contains(t, msg, "check back later")
	require.Equal(t, 1, f.launcher.launchCount())

	// The claim happened on the request path; the episode is Processing
	// before any pipeline work runs.
	ep, err := f.episodes.Get(context.Background(), "e1")
	require.NoError(t, err)
	require.Equal(t, episode.StatusProcessing, ep.TranscriptionStatus)
}

func TestSubmitInFlightIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, status := range []episode.Status{episode.StatusProcessing, episode.StatusSubmitted, episode.StatusRunning} {
		f := newSubmitFixture()
		f.seed("e1", status)
		if status != episode.StatusProcessing {
			ep, _ := f.episodes.Get(context.Background(), "e1")
			ep.ProviderJobURI = "https://speech.local/jobs/1"
			_, err := f.episodes.Upsert(context.Background(), ep)
			require.NoError(t, err)
		}

		accepted, msg, err := f.submitter.Submit(context.Background(), "e1")
		require.NoError(t, err)
		require.True(t, accepted, "status %s", status)
		require.Contains(t, msg, "in progress")
		require.Zero(t, f.launcher.launchCount(), "status %s must not relaunch", status)
	}
}

func TestSubmitSucceededIsNoOp(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	ep := f.seed("e1", episode.StatusSucceeded)
	ep.TranscriptionResult = "the transcript"
	ep.ProviderJobURI = "https://speech.local/jobs/1"
	_, err := f.episodes.Upsert(context.Background(), ep)
	require.NoError(t, err)

	accepted, msg, err := f.submitter.Submit(context.Background(), "e1")
	require.NoError(t, err)
	require.True(t, accepted)
	require.Contains(t, msg, "already generated")
	require.Zero(t, f.launcher.launchCount())
	require.Zero(t, f.fetcher.calls)
}

func TestSubmitFailedEpisodeReportsFailure(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	f.seed("e1", episode.StatusFailed)

	accepted, msg, err := f.submitter.Submit(context.Background(), "e1")
	require.NoError(t, err)
	require.False(t, accepted)
	require.Contains(t, msg, "failed")
	require.Zero(t, f.launcher.launchCount())
}

func TestSubmitConcurrentCallersLaunchOnce(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	f.seed("e1", episode.StatusNotStarted)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			accepted, _, err := f.submitter.Submit(context.Background(), "e1")
			require.NoError(t, err)
			require.True(t, accepted)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, f.launcher.launchCount())
}

func TestPipelineHappyPath(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	f.seed("e1", episode.StatusProcessing)

	err := f.submitter.RunPipeline(context.Background(), &job.Run{ID: "r1", EpisodeID: "e1"})
	require.NoError(t, err)

	ep, err := f.episodes.Get(context.Background(), "e1")
	require.NoError(t, err)
	require.Equal(t, episode.StatusSubmitted, ep.TranscriptionStatus)
	require.NotEmpty(t, ep.ProviderJobURI)
	require.Equal(t, "http://blobs.local/blobs/e1_audio.mp3", ep.ProcessedAudioBlobURI)
	require.NoError(t, ep.CheckInvariants())

	require.Equal(t, 1, f.fetcher.calls)
	require.Equal(t, 1, f.transcoder.calls)
	require.Equal(t, 1, f.objects.uploads)

	// Temp files from both steps are removed.
	for _, path := range append(f.fetcher.files, f.transcoder.files...) {
		_, err := os.Stat(path)
		require.True(t, os.IsNotExist(err), "temp file %s should be gone", path)
	}
}

func TestPipelineSkipsAcquisitionWhenBlobExists(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	f.seed("e1", episode.StatusProcessing)
	f.objects.objects["e1_audio.mp3"] = true

	err := f.submitter.RunPipeline(context.Background(), &job.Run{ID: "r1", EpisodeID: "e1"})
	require.NoError(t, err)

	require.Zero(t, f.fetcher.calls)
	require.Zero(t, f.transcoder.calls)
	require.Zero(t, f.objects.uploads)
	require.Equal(t, 1, f.speech.submitCalls)

	ep, err := f.episodes.Get(context.Background(), "e1")
	require.NoError(t, err)
	require.Equal(t, episode.StatusSubmitted, ep.TranscriptionStatus)
	require.Equal(t, "http://blobs.local/blobs/e1_audio.mp3", ep.ProcessedAudioBlobURI)
}

func TestPipelineDownloadFailureMarksFailed(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	f.seed("e1", episode.StatusProcessing)
	f.fetcher.err = errors.New("remote host unreachable")

	err := f.submitter.RunPipeline(context.Background(), &job.Run{ID: "r1", EpisodeID: "e1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "download audio")

	ep, getErr := f.episodes.Get(context.Background(), "e1")
	require.NoError(t, getErr)
	require.Equal(t, episode.StatusFailed, ep.TranscriptionStatus)
	require.Empty(t, ep.ProviderJobURI)
}

func TestPipelineTranscodeFailureCleansUpDownload(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	f.seed("e1", episode.StatusProcessing)
	f.transcoder.err = errors.New("no audio stream")

	err := f.submitter.RunPipeline(context.Background(), &job.Run{ID: "r1", EpisodeID: "e1"})
	require.Error(t, err)

	require.Len(t, f.fetcher.files, 1)
	_, statErr := os.Stat(f.fetcher.files[0])
	require.True(t, os.IsNotExist(statErr))

	ep, getErr := f.episodes.Get(context.Background(), "e1")
	require.NoError(t, getErr)
	require.Equal(t, episode.StatusFailed, ep.TranscriptionStatus)
}

func TestPipelineProviderFailureMarksFailed(t *testing.T) {
	t.Parallel()

	f := newSubmitFixture()
	f.seed("e1", episode.StatusProcessing)
	f.speech.submitErr = errors.New("provider error (status 403)")

	err := f.submitter.RunPipeline(context.Background(), &job.Run{ID: "r1", EpisodeID: "e1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "submit to provider")

	ep, getErr := f.episodes.Get(context.Background(), "e1")
	require.NoError(t, getErr)
	require.Equal(t, episode.StatusFailed, ep.TranscriptionStatus)

	// The processed audio survived upload, so a retry can skip
	// acquisition next time.
	require.Equal(t, "http://blobs.local/blobs/e1_audio.mp3", ep.ProcessedAudioBlobURI)
}
