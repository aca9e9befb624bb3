package store

import (
	"context"
	"errors"
	"io"

	"github.com/podcast-transcribe/backend/internal/episode"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means an upsert lost the optimistic-concurrency race:
	// the stored version moved since the record was loaded.
	ErrConflict = errors.New("record version conflict")
)

// EpisodeStore persists episode records. There is no partial-field update:
// callers load the full record, mutate it, and upsert the whole thing.
type EpisodeStore interface {
	Get(ctx context.Context, id string) (*episode.Episode, error)
	Create(ctx context.Context, ep *episode.Episode) (*episode.Episode, error)
	// Upsert replaces the stored record if its version still matches
	// ep.Version, bumping the version on success. ErrConflict otherwise.
	Upsert(ctx context.Context, ep *episode.Episode) (*episode.Episode, error)
	// ClaimForProcessing atomically moves a NotStarted episode to
	// Processing. Exactly one of N concurrent claimers wins; the rest get
	// claimed=false with no error.
	ClaimForProcessing(ctx context.Context, id string) (claimed bool, err error)
	List(ctx context.Context) ([]*episode.Episode, error)
}

// ObjectStore holds binary blobs (processed audio) under opaque keys and
// hands out URLs the transcription provider can fetch.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
	Upload(ctx context.Context, r io.Reader, key string) (string, error)
}
