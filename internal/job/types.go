package job

import (
	"context"
	"time"
)

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Terminal reports whether a run has finished, one way or the other.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is one detached execution of the submission pipeline for an episode.
// It is the observable handle for fire-and-forget work: the submit request
// returns immediately, and the run record carries the outcome.
type Run struct {
	ID          string     `json:"id"`
	EpisodeID   string     `json:"episode_id"`
	Status      RunStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Handler executes the pipeline for a run. The error it returns is
// recorded on the run; it is not delivered to the original submitter,
// which has already been answered.
type Handler func(ctx context.Context, run *Run) error
