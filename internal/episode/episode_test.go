package episode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanSubmit(t *testing.T) {
	t.Parallel()

	require.True(t, CanSubmit(StatusNotStarted))
	require.True(t, CanSubmit(StatusFailed))
	require.False(t, CanSubmit(StatusProcessing))
	require.False(t, CanSubmit(StatusSubmitted))
	require.False(t, CanSubmit(StatusRunning))
	require.False(t, CanSubmit(StatusSucceeded))
}

func TestCanTransitionForwardPath(t *testing.T) {
	t.Parallel()

	steps := []Status{StatusNotStarted, StatusProcessing, StatusSubmitted, StatusRunning, StatusSucceeded}
	for i := 0; i < len(steps)-1; i++ {
		require.True(t, CanTransition(steps[i], steps[i+1]), "%s -> %s", steps[i], steps[i+1])
	}

	// Submitted may jump straight to Succeeded when the provider finishes
	// between polls.
	require.True(t, CanTransition(StatusSubmitted, StatusSucceeded))
}

func TestCanTransitionFailures(t *testing.T) {
	t.Parallel()

	for _, from := range []Status{StatusProcessing, StatusSubmitted, StatusRunning} {
		require.True(t, CanTransition(from, StatusFailed), "%s -> Failed", from)
	}
	require.False(t, CanTransition(StatusNotStarted, StatusFailed))
	require.False(t, CanTransition(StatusSucceeded, StatusFailed))
}

func TestCanTransitionNoBackwardMoves(t *testing.T) {
	t.Parallel()

	require.False(t, CanTransition(StatusRunning, StatusProcessing))
	require.False(t, CanTransition(StatusSucceeded, StatusRunning))
	require.False(t, CanTransition(StatusSubmitted, StatusProcessing))
	require.False(t, CanTransition(StatusFailed, StatusProcessing))

	// The one sanctioned regression: the provider reporting NotStarted.
	require.True(t, CanTransition(StatusRunning, StatusNotStarted))
	require.True(t, CanTransition(StatusSucceeded, StatusNotStarted))
}

func TestCheckInvariants(t *testing.T) {
	t.Parallel()

	ep := &Episode{ID: "e1", TranscriptionStatus: StatusRunning, ProviderJobURI: "https://speech/jobs/1"}
	require.NoError(t, ep.CheckInvariants())

	ep.TranscriptionResult = "hello"
	require.ErrorIs(t, ep.CheckInvariants(), ErrTranscriptMismatch)

	ep.TranscriptionStatus = StatusSucceeded
	require.NoError(t, ep.CheckInvariants())

	ep.ProviderJobURI = ""
	require.ErrorIs(t, ep.CheckInvariants(), ErrMissingJobURI)

	succeededNoText := &Episode{ID: "e2", TranscriptionStatus: StatusSucceeded, ProviderJobURI: "u"}
	require.ErrorIs(t, succeededNoText.CheckInvariants(), ErrTranscriptMismatch)
}

func TestValidStatus(t *testing.T) {
	t.Parallel()

	require.True(t, ValidStatus(StatusNotStarted))
	require.False(t, ValidStatus(Status("Parked")))
}
