package orchestrator

import (
	"sync"

	"adstudio-server/internal/models"
)

// slotVersions holds the generation attempts for one slot, newest first,
// plus the index of the version currently being displayed.
type slotVersions struct {
	Jobs        []*models.GenerationJob `json:"jobs"`
	ActiveIndex int                     `json:"activeIndex"`
}

// VersionRegistry maintains, per creative slot, an ordered list of
// generation attempts with append-or-mutate semantics. Entries are never
// deleted, only superseded by newer versions at index 0.
type VersionRegistry struct {
	mu    sync.RWMutex
	slots map[models.SlotID]*slotVersions
}

// NewVersionRegistry creates an empty registry.
func NewVersionRegistry() *VersionRegistry {
	return &VersionRegistry{slots: make(map[models.SlotID]*slotVersions)}
}

// AppendVersion inserts the job at position 0 of its slot (newest first)
// and resets the slot's active pointer to 0.
func (r *VersionRegistry) AppendVersion(slot models.SlotID, job *models.GenerationJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sv, ok := r.slots[slot]
	if !ok {
		sv = &slotVersions{}
		r.slots[slot] = sv
	}
	sv.Jobs = append([]*models.GenerationJob{job}, sv.Jobs...)
	sv.ActiveIndex = 0
}

// MutateActive applies a patch to the job at the slot's currently active
// version index without changing list length or active index. Used for
// extension, which mutates the existing entry rather than appending.
func (r *VersionRegistry) MutateActive(slot models.SlotID, patch models.JobPatch) (*models.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sv, ok := r.slots[slot]
	if !ok || len(sv.Jobs) == 0 {
		return nil, models.ErrSlotEmpty
	}
	idx := clamp(sv.ActiveIndex, 0, len(sv.Jobs)-1)
	sv.ActiveIndex = idx
	job := sv.Jobs[idx]
	job.Apply(patch)
	return job, nil
}

// MutateByID applies a patch to the job with the given id wherever it sits.
// Poll transitions address jobs by id, not by display position.
func (r *VersionRegistry) MutateByID(jobID string, patch models.JobPatch) (*models.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sv := range r.slots {
		for _, job := range sv.Jobs {
			if job.ID == jobID {
				job.Apply(patch)
				return job, nil
			}
		}
	}
	return nil, models.ErrJobNotFound
}

// Navigate moves the slot's active pointer by direction (±1), clamped to
// the valid range. A stale index (list shrank) clamps instead of failing.
func (r *VersionRegistry) Navigate(slot models.SlotID, direction int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sv, ok := r.slots[slot]
	if !ok || len(sv.Jobs) == 0 {
		return 0
	}
	sv.ActiveIndex = clamp(sv.ActiveIndex+direction, 0, len(sv.Jobs)-1)
	return sv.ActiveIndex
}

// Active returns the currently displayed job for the slot.
func (r *VersionRegistry) Active(slot models.SlotID) (*models.GenerationJob, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sv, ok := r.slots[slot]
	if !ok || len(sv.Jobs) == 0 {
		return nil, 0, models.ErrSlotEmpty
	}
	idx := clamp(sv.ActiveIndex, 0, len(sv.Jobs)-1)
	return sv.Jobs[idx], idx, nil
}

// Versions returns a copy of the slot's version list, newest first.
func (r *VersionRegistry) Versions(slot models.SlotID) []*models.GenerationJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sv, ok := r.slots[slot]
	if !ok {
		return nil
	}
	out := make([]*models.GenerationJob, len(sv.Jobs))
	copy(out, sv.Jobs)
	return out
}

// VersionCount returns the number of versions stored for the slot.
func (r *VersionRegistry) VersionCount(slot models.SlotID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sv, ok := r.slots[slot]
	if !ok {
		return 0
	}
	return len(sv.Jobs)
}

// AnyComplete reports whether any job across all slots and versions has
// reached complete. Readiness indicators derive from this, independent of
// which version the user is currently looking at.
func (r *VersionRegistry) AnyComplete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sv := range r.slots {
		for _, job := range sv.Jobs {
			if job.Status == models.JobStatusComplete {
				return true
			}
		}
	}
	return false
}

// AnyInFlight reports whether any job is in a non-terminal state. The
// polling loop runs only while this holds.
func (r *VersionRegistry) AnyInFlight() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sv := range r.slots {
		for _, job := range sv.Jobs {
			if !job.Status.IsTerminal() {
				return true
			}
		}
	}
	return false
}

// Replace swaps the registry content for the authoritative job list from
// the backend, grouped by slot. The backend owns the full list: jobs it no
// longer reports disappear. Two narrow guards cover poll races: a locally
// known job still in flight (just submitted, not yet visible upstream) is
// retained at the head of its slot, and an upstream row older than a
// terminal local job is ignored wholesale so finished artifacts survive.
func (r *VersionRegistry) Replace(jobs []*models.GenerationJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	incoming := make(map[string]bool, len(jobs))
	next := make(map[models.SlotID]*slotVersions)
	for _, job := range jobs {
		incoming[job.ID] = true
		if prev := r.findByID(job.ID); prev != nil {
			if !staleSnapshot(prev, job) {
				prev.Apply(snapshotPatch(job))
			}
			job = prev
		}
		sv, ok := next[job.SlotIndex]
		if !ok {
			sv = &slotVersions{}
			next[job.SlotIndex] = sv
		}
		sv.Jobs = append(sv.Jobs, job)
	}

	// Retain in-flight local jobs the backend has not reflected yet.
	// Terminal jobs the backend dropped stay dropped.
	for slot, sv := range r.slots {
		for _, job := range sv.Jobs {
			if incoming[job.ID] || job.Status.IsTerminal() {
				continue
			}
			nsv, ok := next[slot]
			if !ok {
				nsv = &slotVersions{}
				next[slot] = nsv
			}
			nsv.Jobs = append([]*models.GenerationJob{job}, nsv.Jobs...)
		}
	}

	// Carry over active pointers, clamped to the new list lengths.
	for slot, sv := range next {
		if old, ok := r.slots[slot]; ok {
			sv.ActiveIndex = clamp(old.ActiveIndex, 0, len(sv.Jobs)-1)
		}
	}
	r.slots = next
}

// staleSnapshot reports whether the upstream row predates the local job:
// the local job reached a terminal state the row's status cannot follow
// from. Applying such a row would blank out artifact fields the local
// job already holds.
func staleSnapshot(local, row *models.GenerationJob) bool {
	return local.Status.IsTerminal() &&
		row.Status != local.Status &&
		!local.Status.CanTransitionTo(row.Status)
}

// snapshotPatch converts an authoritative row into a patch for the local
// entry. Optional fields apply only when present, so a row that has not
// caught up yet cannot erase URLs or durations already observed.
func snapshotPatch(job *models.GenerationJob) models.JobPatch {
	patch := models.JobPatch{
		Status:      &job.Status,
		ProgressPct: &job.ProgressPct,
	}
	if job.DurationSeconds > 0 {
		patch.DurationSeconds = &job.DurationSeconds
	}
	if job.TargetDurationSeconds > 0 {
		patch.TargetDurationSeconds = &job.TargetDurationSeconds
	}
	if job.FinalVideoURL != "" {
		patch.FinalVideoURL = &job.FinalVideoURL
	}
	if job.RawVideoURL != "" {
		patch.RawVideoURL = &job.RawVideoURL
	}
	if job.ThumbnailURL != "" {
		patch.ThumbnailURL = &job.ThumbnailURL
	}
	if job.ExtensionStep > 0 {
		patch.ExtensionStep = &job.ExtensionStep
	}
	if job.ExtensionTotal > 0 {
		patch.ExtensionTotal = &job.ExtensionTotal
	}
	if job.ErrorMessage != "" {
		patch.ErrorMessage = &job.ErrorMessage
	}
	return patch
}

// Snapshot returns all jobs grouped by slot, newest first per slot.
func (r *VersionRegistry) Snapshot() map[models.SlotID][]*models.GenerationJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.SlotID][]*models.GenerationJob, len(r.slots))
	for slot, sv := range r.slots {
		jobs := make([]*models.GenerationJob, len(sv.Jobs))
		copy(jobs, sv.Jobs)
		out[slot] = jobs
	}
	return out
}

func (r *VersionRegistry) findByID(jobID string) *models.GenerationJob {
	for _, sv := range r.slots {
		for _, job := range sv.Jobs {
			if job.ID == jobID {
				return job
			}
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
