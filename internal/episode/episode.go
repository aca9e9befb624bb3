package episode

import "time"

// Status represents the transcription lifecycle state of an episode.
type Status string

const (
	StatusNotStarted Status = "NotStarted"
	StatusProcessing Status = "Processing"
	StatusSubmitted  Status = "Submitted"
	StatusRunning    Status = "Running"
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
)

// Episode is a podcast episode tracked through the transcription lifecycle.
type Episode struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	PodcastID             string    `json:"podcast_id,omitempty"`
	AudioURL              string    `json:"audio_url"`
	TranscriptionStatus   Status    `json:"transcription_status"`
	TranscriptionResult   string    `json:"transcription_result_display,omitempty"`
	ProcessedAudioBlobURI string    `json:"processed_audio_blob_uri,omitempty"`
	ProviderJobURI        string    `json:"provider_job_uri,omitempty"`
	Version               int64     `json:"version"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Summary is the compact episode view returned by search and list endpoints.
type Summary struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	TranscriptionStatus Status `json:"transcription_status"`
}

// Summarize strips an episode down to its list representation.
func (e *Episode) Summarize() Summary {
	return Summary{
		ID:                  e.ID,
		Title:               e.Title,
		Description:         e.Description,
		TranscriptionStatus: e.TranscriptionStatus,
	}
}

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNotStarted, StatusProcessing, StatusSubmitted, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// CanSubmit reports whether an episode in status s accepts a fresh
// submission. In-flight states must not spawn a second pipeline, and a
// finished episode is a no-op handled by the orchestrator.
func CanSubmit(s Status) bool {
	return s == StatusNotStarted || s == StatusFailed
}

// InFlight reports whether a pipeline or provider job is already working
// on the episode.
func InFlight(s Status) bool {
	return s == StatusProcessing || s == StatusSubmitted || s == StatusRunning
}

// CanTransition reports whether moving from one status to another is a
// legal lifecycle step. Failed is reachable from every in-flight state,
// and NotStarted is reachable from anywhere because the provider may
// report a job as not started after a regression on its side.
func CanTransition(from, to Status) bool {
	if to == StatusNotStarted {
		return true
	}
	switch from {
	case StatusNotStarted:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusSubmitted || to == StatusFailed
	case StatusSubmitted:
		return to == StatusRunning || to == StatusSucceeded || to == StatusFailed
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed
	case StatusSucceeded, StatusFailed:
		return false
	}
	return false
}

// CheckInvariants verifies the record-level consistency rules: the
// transcript is present exactly when the episode succeeded, and a
// provider job URI exists for every post-submission state.
func (e *Episode) CheckInvariants() error {
	if (e.TranscriptionResult != "") != (e.TranscriptionStatus == StatusSucceeded) {
		return ErrTranscriptMismatch
	}
	switch e.TranscriptionStatus {
	case StatusSubmitted, StatusRunning, StatusSucceeded:
		if e.ProviderJobURI == "" {
			return ErrMissingJobURI
		}
	}
	return nil
}
