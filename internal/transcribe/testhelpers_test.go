package transcribe

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/podcast-transcribe/backend/internal/episode"
	"github.com/podcast-transcribe/backend/internal/job"
	"github.com/podcast-transcribe/backend/internal/speech"
	"github.com/podcast-transcribe/backend/internal/store"
)

// memEpisodeStore is an in-memory EpisodeStore with the same versioning
// semantics as the sqlite implementation.
type memEpisodeStore struct {
	mu       sync.Mutex
	episodes map[string]*episode.Episode
}

func newMemEpisodeStore() *memEpisodeStore {
	return &memEpisodeStore{episodes: make(map[string]*episode.Episode)}
}

func (m *memEpisodeStore) Get(ctx context.Context, id string) (*episode.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.episodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ep
	return &cp, nil
}

func (m *memEpisodeStore) Create(ctx context.Context, ep *episode.Episode) (*episode.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ep
	cp.Version = 1
	m.episodes[ep.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memEpisodeStore) Upsert(ctx context.Context, ep *episode.Episode) (*episode.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.episodes[ep.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if cur.Version != ep.Version {
		return nil, store.ErrConflict
	}
	cp := *ep
	cp.Version++
	m.episodes[ep.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memEpisodeStore) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.episodes[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if ep.TranscriptionStatus != episode.StatusNotStarted {
		return false, nil
	}
	ep.TranscriptionStatus = episode.StatusProcessing
	ep.Version++
	return true, nil
}

func (m *memEpisodeStore) List(ctx context.Context) ([]*episode.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*episode.Episode
	for _, ep := range m.episodes {
		cp := *ep
		out = append(out, &cp)
	}
	return out, nil
}

// memObjectStore keeps uploads in a map.
type memObjectStore struct {
	mu       sync.Mutex
	objects  map[string]bool
	uploads  int
	existErr error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string]bool)}
}

func (m *memObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existErr != nil {
		return false, m.existErr
	}
	return m.objects[key], nil
}

func (m *memObjectStore) URL(key string) string {
	return "http://blobs.local/blobs/" + key
}

func (m *memObjectStore) Upload(ctx context.Context, r io.Reader, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = true
	m.uploads++
	return m.URL(key), nil
}

// fakeFetcher writes a temp file and remembers it so tests can assert
// cleanup.
type fakeFetcher struct {
	mu    sync.Mutex
	err   error
	calls int
	files []string
}

func (f *fakeFetcher) Download(ctx context.Context, audioURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	tmp, err := os.CreateTemp("", "fake-download-"+uuid.New().String())
	if err != nil {
		return "", err
	}
	tmp.WriteString("raw-audio")
	tmp.Close()
	f.files = append(f.files, tmp.Name())
	return tmp.Name(), nil
}

type fakeTranscoder struct {
	mu    sync.Mutex
	err   error
	calls int
	files []string
}

func (f *fakeTranscoder) Transcode(ctx context.Context, inputPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	tmp, err := os.CreateTemp("", "fake-processed-"+uuid.New().String())
	if err != nil {
		return "", err
	}
	tmp.WriteString("processed-audio")
	tmp.Close()
	f.files = append(f.files, tmp.Name())
	return tmp.Name(), nil
}

// fakeSpeech scripts the provider's answers.
type fakeSpeech struct {
	mu          sync.Mutex
	submitErr   error
	submitCalls int
	jobURI      string
	status      speech.JobStatus
	statusErr   error
	files       []speech.ResultFile
	filesErr    error
	transcript  string
	transErr    error
}

func (f *fakeSpeech) Submit(ctx context.Context, audioURL, displayName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if f.jobURI == "" {
		f.jobURI = "https://speech.local/jobs/" + uuid.New().String()
	}
	return f.jobURI, nil
}

func (f *fakeSpeech) Status(ctx context.Context, jobURI string) (speech.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeSpeech) ResultFiles(ctx context.Context, jobURI string) ([]speech.ResultFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files, f.filesErr
}

func (f *fakeSpeech) Transcript(ctx context.Context, contentURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcript, f.transErr
}

// fakeLauncher records launches without running anything; pipeline tests
// call RunPipeline directly.
type fakeLauncher struct {
	mu       sync.Mutex
	launches []string
	err      error
}

func (f *fakeLauncher) Launch(episodeID string) (*job.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.launches = append(f.launches, episodeID)
	return &job.Run{
		ID:        fmt.Sprintf("run-%d", len(f.launches)),
		EpisodeID: episodeID,
		Status:    job.StatusPending,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeLauncher) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

func transcriptionArtifact(contentURL string) speech.ResultFile {
	var rf speech.ResultFile
	rf.Kind = "Transcription"
	rf.Links.ContentURL = contentURL
	return rf
}
