package episode

import "errors"

var (
	// ErrTranscriptMismatch means the transcript and Succeeded status
	// disagree: one is set without the other.
	ErrTranscriptMismatch = errors.New("transcript set without Succeeded status (or vice versa)")

	// ErrMissingJobURI means a post-submission status has no provider job
	// reference to poll.
	ErrMissingJobURI = errors.New("missing provider job URI for submitted episode")
)
