package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

// Possible job statuses. Transitions are monotonic forward; the only legal
// re-entry into a terminal state is complete -> extending -> complete,
// driven by an explicit extend action.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusGenerating JobStatus = "generating"
	JobStatusRendering  JobStatus = "rendering"
	JobStatusExtending  JobStatus = "extending"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed:
		return true
	default:
		return false
	}
}

// rank orders statuses for the forward-only transition guard. Extending sits
// between rendering and complete so that a completed job dropping back to
// extending is handled as the explicit exception, not via rank.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusGenerating:
		return 1
	case JobStatusRendering:
		return 2
	case JobStatusExtending:
		return 3
	case JobStatusComplete, JobStatusFailed:
		return 4
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next respects the
// monotonic status invariant.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	if s == JobStatusComplete && next == JobStatusExtending {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Provider identifies the external generation backend. The extended variant
// is selected for durations beyond the 8s base and supports 7s increments.
type Provider string

const (
	ProviderVeo         Provider = "veo"
	ProviderVeoExtended Provider = "veo-extended"
)

// QualityTier selects the pricing tier for a generation request.
type QualityTier string

const (
	QualityStandard QualityTier = "standard"
	QualityPremium  QualityTier = "premium"
	QualityUGC      QualityTier = "ugc"
)

// SlotID identifies a logical creative slot. It is a first-class identifier,
// not an array position: version lists are keyed by it.
type SlotID int32

// GenerationJob is one generation attempt for a slot. Created by the
// submission gateway, mutated only by the polling loop (status/progress) or
// by an explicit extend action; superseded by newer versions, never deleted.
type GenerationJob struct {
	ID                    string      `json:"id"`
	CanvasID              uuid.UUID   `json:"canvasId"`
	SlotIndex             SlotID      `json:"slotIndex"`
	Status                JobStatus   `json:"status"`
	Provider              Provider    `json:"provider"`
	Quality               QualityTier `json:"quality"`
	Prompt                string      `json:"prompt,omitempty"`
	DurationSeconds       int         `json:"durationSeconds"`
	TargetDurationSeconds int         `json:"targetDurationSeconds"`
	ProgressPct           int         `json:"progressPct,omitempty"`
	FinalVideoURL         string      `json:"finalVideoUrl,omitempty"`
	RawVideoURL           string      `json:"rawVideoUrl,omitempty"`
	ThumbnailURL          string      `json:"thumbnailUrl,omitempty"`
	ExtensionStep         int         `json:"extensionStep,omitempty"`
	ExtensionTotal        int         `json:"extensionTotal,omitempty"`
	ErrorMessage          string      `json:"errorMessage,omitempty"`
	CreditCost            int         `json:"creditCost"`
	CreatedAt             time.Time   `json:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt"`
}

// JobPatch carries the mutable fields a poll cycle or extend action may
// apply to an existing job. Nil fields are left untouched.
type JobPatch struct {
	Status                *JobStatus
	ProgressPct           *int
	DurationSeconds       *int
	TargetDurationSeconds *int
	FinalVideoURL         *string
	RawVideoURL           *string
	ThumbnailURL          *string
	ExtensionStep         *int
	ExtensionTotal        *int
	ErrorMessage          *string
}

// Apply copies the non-nil patch fields onto the job and bumps UpdatedAt.
// The status change is subject to CanTransitionTo; an illegal transition is
// silently dropped so a stale poll can never regress a terminal job.
func (j *GenerationJob) Apply(p JobPatch) {
	if p.Status != nil && j.Status.CanTransitionTo(*p.Status) {
		j.Status = *p.Status
	}
	if p.ProgressPct != nil {
		j.ProgressPct = *p.ProgressPct
	}
	if p.DurationSeconds != nil {
		j.DurationSeconds = *p.DurationSeconds
	}
	if p.TargetDurationSeconds != nil {
		j.TargetDurationSeconds = *p.TargetDurationSeconds
	}
	if p.FinalVideoURL != nil {
		j.FinalVideoURL = *p.FinalVideoURL
	}
	if p.RawVideoURL != nil {
		j.RawVideoURL = *p.RawVideoURL
	}
	if p.ThumbnailURL != nil {
		j.ThumbnailURL = *p.ThumbnailURL
	}
	if p.ExtensionStep != nil {
		j.ExtensionStep = *p.ExtensionStep
	}
	if p.ExtensionTotal != nil {
		j.ExtensionTotal = *p.ExtensionTotal
	}
	if p.ErrorMessage != nil {
		j.ErrorMessage = *p.ErrorMessage
	}
	j.UpdatedAt = time.Now().UTC()
}
