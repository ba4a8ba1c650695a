package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptPhasesMoveForward(t *testing.T) {
	a := NewAttempt("a1", "https://boards.greenhouse.io/acme/jobs/1", time.Now())

	require.NoError(t, a.Advance(PhaseBrowsing))
	require.NoError(t, a.Advance(PhaseFilling))
	assert.Error(t, a.Advance(PhaseClassifying), "backwards transition")
	assert.Error(t, a.Advance(PhaseFilling), "self transition")
	assert.Error(t, a.Advance(PhaseTerminal), "terminal only via Finalize")
}

func TestAttemptFinalizeOnce(t *testing.T) {
	a := NewAttempt("a1", "https://example.com/job", time.Now())
	a.AddStep("navigated_to_job")
	a.AddError("boom")

	assert.True(t, a.Finalize(StatusFailed, time.Now()))
	assert.False(t, a.Finalize(StatusSuccess, time.Now()))
	assert.Equal(t, StatusFailed, a.Status)
	assert.Equal(t, PhaseTerminal, a.Phase)

	a.AddStep("late")
	a.AddError("late")
	a.AddWarning("late")
	a.AddScreenshot("/tmp/x.png")
	a.SetMeta("late", true)
	assert.Equal(t, []string{"navigated_to_job"}, a.StepsCompleted)
	assert.Equal(t, []string{"boom"}, a.Errors)
	assert.Empty(t, a.Warnings)
	assert.Empty(t, a.Screenshots)
	assert.NotContains(t, a.Metadata, "late")
	assert.Equal(t, 1, a.Metadata["total_steps"])
	assert.Error(t, a.Advance(PhaseVerifying))
}

func TestFinalizeRejectsPending(t *testing.T) {
	a := NewAttempt("a1", "https://example.com/job", time.Now())
	assert.False(t, a.Finalize(StatusPending, time.Now()))
	assert.False(t, a.Final())
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", CandidateProfile{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada", CandidateProfile{FirstName: "Ada"}.FullName())
	assert.Equal(t, "", CandidateProfile{}.FullName())
}
