package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/podcast-transcribe/backend/internal/episode"
	"github.com/podcast-transcribe/backend/internal/store"
)

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		podcast_id TEXT NOT NULL DEFAULT '',
		audio_url TEXT NOT NULL,
		transcription_status TEXT NOT NULL DEFAULT 'NotStarted',
		transcription_result_display TEXT NOT NULL DEFAULT '',
		processed_audio_blob_uri TEXT NOT NULL DEFAULT '',
		provider_job_uri TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		episode_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_pipeline_runs_episode ON pipeline_runs(episode_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Conn exposes the underlying handle for collaborators that manage their
// own tables (the pipeline runner).
func (d *Database) Conn() *sql.DB {
	return d.db
}

func (d *Database) Close() error {
	return d.db.Close()
}

const episodeColumns = `id, title, description, podcast_id, audio_url, transcription_status,
	transcription_result_display, processed_audio_blob_uri, provider_job_uri, version, created_at, updated_at`

func scanEpisode(row interface{ Scan(...interface{}) error }) (*episode.Episode, error) {
	ep := &episode.Episode{}
	err := row.Scan(&ep.ID, &ep.Title, &ep.Description, &ep.PodcastID, &ep.AudioURL,
		&ep.TranscriptionStatus, &ep.TranscriptionResult, &ep.ProcessedAudioBlobURI,
		&ep.ProviderJobURI, &ep.Version, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func (d *Database) Get(ctx context.Context, id string) (*episode.Episode, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT "+episodeColumns+" FROM episodes WHERE id = ?", id)
	ep, err := scanEpisode(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func (d *Database) Create(ctx context.Context, ep *episode.Episode) (*episode.Episode, error) {
	now := time.Now().UTC()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO episodes (id, title, description, podcast_id, audio_url, transcription_status,
			transcription_result_display, processed_audio_blob_uri, provider_job_uri, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		ep.ID, ep.Title, ep.Description, ep.PodcastID, ep.AudioURL, ep.TranscriptionStatus,
		ep.TranscriptionResult, ep.ProcessedAudioBlobURI, ep.ProviderJobURI, now, now,
	)
	if err != nil {
		return nil, err
	}
	return d.Get(ctx, ep.ID)
}

// Upsert replaces the full record, guarded by the version the caller
// loaded. A concurrent writer bumps the version and the stale write comes
// back as store.ErrConflict instead of silently clobbering state.
func (d *Database) Upsert(ctx context.Context, ep *episode.Episode) (*episode.Episode, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE episodes SET title = ?, description = ?, podcast_id = ?, audio_url = ?,
			transcription_status = ?, transcription_result_display = ?,
			processed_audio_blob_uri = ?, provider_job_uri = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		ep.Title, ep.Description, ep.PodcastID, ep.AudioURL,
		ep.TranscriptionStatus, ep.TranscriptionResult,
		ep.ProcessedAudioBlobURI, ep.ProviderJobURI,
		time.Now().UTC(), ep.ID, ep.Version,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := d.Get(ctx, ep.ID); err != nil {
			return nil, err
		}
		return nil, store.ErrConflict
	}
	return d.Get(ctx, ep.ID)
}

// ClaimForProcessing is the atomic NotStarted -> Processing step. Only one
// of any number of concurrent submitters gets claimed=true.
func (d *Database) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE episodes SET transcription_status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND transcription_status = ?`,
		episode.StatusProcessing, time.Now().UTC(), id, episode.StatusNotStarted,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Database) List(ctx context.Context) ([]*episode.Episode, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+episodeColumns+" FROM episodes ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []*episode.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}
