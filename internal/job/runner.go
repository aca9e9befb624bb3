package job

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Runner manages pipeline-run persistence and dispatching. Runs execute on
// a worker goroutine detached from the request that launched them: once a
// run is queued the caller's lifetime no longer matters, but the outcome
// is still observable through the run record and Watch.
type Runner struct {
	db       *sql.DB
	mu       sync.Mutex
	pending  chan string // run IDs to process
	handler  Handler
	watchers map[string][]chan error
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewRunner creates and starts a runner over the pipeline_runs table.
func NewRunner(db *sql.DB) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		db:       db,
		pending:  make(chan string, 100),
		watchers: make(map[string][]chan error),
		ctx:      ctx,
		cancel:   cancel,
	}

	// Resume any pending/running runs from DB on startup
	go r.resumeRuns()

	// Start worker
	go r.worker()

	return r
}

// RegisterHandler sets the pipeline function runs are dispatched to.
func (r *Runner) RegisterHandler(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Launch creates a run for an episode and queues it for execution.
func (r *Runner) Launch(episodeID string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		EpisodeID: episodeID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	_, err := r.db.Exec(`
		INSERT INTO pipeline_runs (id, episode_id, status, created_at)
		VALUES (?, ?, ?, ?)`,
		run.ID, run.EpisodeID, run.Status, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	// Push to worker channel
	select {
	case r.pending <- run.ID:
	default:
		log.Printf("[pipeline] queue full, run %s will be picked up on next start", run.ID)
	}

	return run, nil
}

// Watch returns a channel that receives the run's terminal error (nil on
// success) exactly once. A run that already finished reports immediately.
func (r *Runner) Watch(runID string) <-chan error {
	ch := make(chan error, 1)

	// Register before checking the record so a completion landing between
	// the two cannot be missed.
	r.mu.Lock()
	r.watchers[runID] = append(r.watchers[runID], ch)
	r.mu.Unlock()

	run, err := r.GetRun(runID)
	if err == nil && run.Status.Terminal() {
		r.mu.Lock()
		chans := r.watchers[runID]
		for i, c := range chans {
			if c == ch {
				r.watchers[runID] = append(chans[:i], chans[i+1:]...)
				if run.Status == StatusFailed {
					ch <- fmt.Errorf("%s", run.Error)
				} else {
					ch <- nil
				}
				break
			}
		}
		if len(r.watchers[runID]) == 0 {
			delete(r.watchers, runID)
		}
		r.mu.Unlock()
	}
	return ch
}

// GetRun retrieves a run by ID.
func (r *Runner) GetRun(id string) (*Run, error) {
	run := &Run{}
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := r.db.QueryRow(`
		SELECT id, episode_id, status, error, created_at, started_at, completed_at
		FROM pipeline_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.EpisodeID, &run.Status, &errMsg, &run.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// ListRuns returns all runs ordered by creation time (newest first).
func (r *Runner) ListRuns() ([]*Run, error) {
	rows, err := r.db.Query(`
		SELECT id, episode_id, status, error, created_at, started_at, completed_at
		FROM pipeline_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var errMsg sql.NullString
		var startedAt, completedAt sql.NullTime

		if err := rows.Scan(&run.ID, &run.EpisodeID, &run.Status, &errMsg,
			&run.CreatedAt, &startedAt, &completedAt); err != nil {
			return nil, err
		}

		if errMsg.Valid {
			run.Error = errMsg.String
		}
		if startedAt.Valid {
			run.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stop shuts down the runner. In-flight handlers see their context
// cancelled; queued runs are resumed on next start.
func (r *Runner) Stop() {
	r.cancel()
}

// worker processes runs from the pending channel one at a time. A single
// worker keeps pipeline steps strictly sequential per run and avoids
// saturating the host with concurrent ffmpeg processes.
func (r *Runner) worker() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case runID := <-r.pending:
			r.processRun(runID)
		}
	}
}

func (r *Runner) processRun(runID string) {
	run, err := r.GetRun(runID)
	if err != nil {
		log.Printf("[pipeline] failed to load run %s: %v", runID, err)
		return
	}

	// Skip if not pending
	if run.Status != StatusPending {
		return
	}

	r.mu.Lock()
	handler := r.handler
	r.mu.Unlock()

	if handler == nil {
		log.Printf("[pipeline] no handler registered, failing run %s", run.ID)
		r.failRun(run, "no pipeline handler registered")
		return
	}

	// Mark as running
	now := time.Now()
	run.StartedAt = &now
	run.Status = StatusRunning
	r.db.Exec("UPDATE pipeline_runs SET status = ?, started_at = ? WHERE id = ?",
		StatusRunning, now, run.ID)

	err = handler(r.ctx, run)
	if err != nil {
		r.failRun(run, err.Error())
	} else {
		r.completeRun(run)
	}
	r.notify(run.ID, err)
}

func (r *Runner) completeRun(run *Run) {
	now := time.Now()
	r.db.Exec("UPDATE pipeline_runs SET status = ?, completed_at = ? WHERE id = ?",
		StatusCompleted, now, run.ID)
	log.Printf("[pipeline] run %s for episode %s completed", run.ID, run.EpisodeID)
}

func (r *Runner) failRun(run *Run, errMsg string) {
	now := time.Now()
	r.db.Exec("UPDATE pipeline_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?",
		StatusFailed, errMsg, now, run.ID)
	log.Printf("[pipeline] run %s for episode %s failed: %s", run.ID, run.EpisodeID, errMsg)
}

func (r *Runner) notify(runID string, err error) {
	r.mu.Lock()
	chans := r.watchers[runID]
	delete(r.watchers, runID)
	r.mu.Unlock()

	for _, ch := range chans {
		ch <- err
	}
}

// resumeRuns re-queues any pending runs found in DB on startup.
func (r *Runner) resumeRuns() {
	// Mark any previously "running" runs as pending (server restarted)
	r.db.Exec("UPDATE pipeline_runs SET status = ? WHERE status = ?", StatusPending, StatusRunning)

	rows, err := r.db.Query("SELECT id FROM pipeline_runs WHERE status = ? ORDER BY created_at ASC", StatusPending)
	if err != nil {
		log.Printf("[pipeline] failed to resume runs: %v", err)
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		select {
		case r.pending <- id:
			count++
		default:
		}
	}

	if count > 0 {
		log.Printf("[pipeline] resumed %d pending runs", count)
	}
}
