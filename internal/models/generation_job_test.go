package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusTransitions(t *testing.T) {
	testCases := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{"queued to generating", JobStatusQueued, JobStatusGenerating, true},
		{"generating to rendering", JobStatusGenerating, JobStatusRendering, true},
		{"rendering to complete", JobStatusRendering, JobStatusComplete, true},
		{"queued straight to complete", JobStatusQueued, JobStatusComplete, true},
		{"generating to failed", JobStatusGenerating, JobStatusFailed, true},
		{"same status is a no-op", JobStatusGenerating, JobStatusGenerating, true},
		{"complete back to generating", JobStatusComplete, JobStatusGenerating, false},
		{"failed back to queued", JobStatusFailed, JobStatusQueued, false},
		{"failed to complete", JobStatusFailed, JobStatusComplete, false},
		{"rendering back to queued", JobStatusRendering, JobStatusQueued, false},
		{"complete to extending is the one re-entry", JobStatusComplete, JobStatusExtending, true},
		{"extending to complete", JobStatusExtending, JobStatusComplete, true},
		{"extending to failed", JobStatusExtending, JobStatusFailed, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestApplyDropsIllegalStatusRegression(t *testing.T) {
	job := &GenerationJob{Status: JobStatusComplete, FinalVideoURL: "https://cdn/video.mp4"}

	stale := JobStatusGenerating
	pct := 40
	job.Apply(JobPatch{Status: &stale, ProgressPct: &pct})

	assert.Equal(t, JobStatusComplete, job.Status, "stale status must not regress a terminal job")
	assert.Equal(t, 40, job.ProgressPct, "non-status fields still apply")
}

func TestApplyKeepsNilFieldsUntouched(t *testing.T) {
	job := &GenerationJob{
		Status:        JobStatusGenerating,
		ProgressPct:   25,
		FinalVideoURL: "keep",
	}
	next := JobStatusRendering
	job.Apply(JobPatch{Status: &next})

	assert.Equal(t, JobStatusRendering, job.Status)
	assert.Equal(t, 25, job.ProgressPct)
	assert.Equal(t, "keep", job.FinalVideoURL)
	assert.False(t, job.UpdatedAt.IsZero())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, JobStatusComplete.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.False(t, JobStatusQueued.IsTerminal())
	assert.False(t, JobStatusExtending.IsTerminal())
}
