package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/provider"
	"adstudio-server/internal/repository"
)

var (
	pollCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adstudio_poll_cycles_total",
		Help: "Total number of polling cycles executed.",
	})
	pollTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_poll_transitions_total",
			Help: "Job status transitions observed by the polling loop.",
		},
		[]string{"status"},
	)
	activePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adstudio_active_pollers",
		Help: "Number of sessions currently being polled.",
	})
)

// Notifier receives job updates for fan-out to connected clients.
type Notifier interface {
	NotifyJobUpdate(sessionID string, job *models.GenerationJob)
}

// Poller drives the 15-second polling loop. One goroutine per session with
// in-flight jobs; the loop polls every non-terminal job, applies the result
// through the registry's transition guard, persists observed transitions and
// stops itself once nothing is in flight.
type Poller struct {
	video    provider.VideoGenerator
	canvases repository.CanvasRepository
	sessions *SessionManager
	notifier Notifier
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a Poller. The notifier may be nil.
func NewPoller(
	video provider.VideoGenerator,
	canvases repository.CanvasRepository,
	sessions *SessionManager,
	notifier Notifier,
	interval time.Duration,
	logger *zap.Logger,
) *Poller {
	return &Poller{
		video:    video,
		canvases: canvases,
		sessions: sessions,
		notifier: notifier,
		interval: interval,
		logger:   logger.Named("Poller"),
		active:   make(map[string]context.CancelFunc),
	}
}

// Ensure starts the polling loop for the session if it is not already
// running. Safe to call on every submission; at most one loop per session.
func (p *Poller) Ensure(ctx context.Context, session *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, running := p.active[session.SessionID]; running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.active[session.SessionID] = cancel
	activePollers.Inc()
	p.wg.Add(1)
	go p.run(loopCtx, session)
	p.logger.Info("Polling started", zap.String("session_id", session.SessionID))
}

// Stop cancels all polling loops and waits for them to drain.
func (p *Poller) Stop() {
	p.mu.Lock()
	for _, cancel := range p.active {
		cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, session *Session) {
	defer p.wg.Done()
	defer p.release(session.SessionID)

	// First cycle immediately so the client sees queued -> generating
	// without waiting a full interval.
	p.cycle(ctx, session)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx, session)
			if !session.Registry().AnyInFlight() {
				p.logger.Info("No jobs in flight, polling stopped",
					zap.String("session_id", session.SessionID))
				return
			}
		}
	}
}

func (p *Poller) release(sessionID string) {
	p.mu.Lock()
	if cancel, ok := p.active[sessionID]; ok {
		cancel()
		delete(p.active, sessionID)
		activePollers.Dec()
	}
	p.mu.Unlock()
}

// cycle polls every non-terminal job once and applies what came back.
func (p *Poller) cycle(ctx context.Context, session *Session) {
	pollCyclesTotal.Inc()
	registry := session.Registry()

	for _, jobs := range registry.Snapshot() {
		for _, job := range jobs {
			prevStatus, prevProgress := job.Status, job.ProgressPct
			if prevStatus.IsTerminal() {
				continue
			}
			state, err := p.video.Poll(ctx, job.ID)
			if err != nil {
				if err == models.ErrJobNotFound {
					p.fail(ctx, session, job.ID, "job disappeared from provider")
					continue
				}
				// Transient poll failure: keep the current state and try
				// again next cycle.
				p.logger.Warn("Poll failed",
					zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			p.apply(ctx, session, job.ID, prevStatus, prevProgress, state)
		}
	}
}

// apply maps a provider state onto the job through the transition guard and
// persists/broadcasts only when something actually changed.
func (p *Poller) apply(ctx context.Context, session *Session, jobID string, prevStatus models.JobStatus, prevProgress int, state provider.JobState) {
	patch := models.JobPatch{
		Status:       &state.Status,
		ProgressPct:  &state.ProgressPct,
		ErrorMessage: &state.ErrorMessage,
	}
	if state.DurationSeconds > 0 {
		patch.DurationSeconds = &state.DurationSeconds
	}
	if state.TargetDurationSeconds > 0 {
		patch.TargetDurationSeconds = &state.TargetDurationSeconds
	}
	if state.FinalVideoURL != "" {
		patch.FinalVideoURL = &state.FinalVideoURL
	}
	if state.RawVideoURL != "" {
		patch.RawVideoURL = &state.RawVideoURL
	}
	if state.ThumbnailURL != "" {
		patch.ThumbnailURL = &state.ThumbnailURL
	}
	if state.ExtensionStep > 0 {
		patch.ExtensionStep = &state.ExtensionStep
	}
	if state.ExtensionTotal > 0 {
		patch.ExtensionTotal = &state.ExtensionTotal
	}

	job, err := session.Registry().MutateByID(jobID, patch)
	if err != nil {
		return
	}
	if job.Status == prevStatus && job.ProgressPct == prevProgress {
		return
	}
	if job.Status != prevStatus {
		pollTransitionsTotal.WithLabelValues(string(job.Status)).Inc()
		p.logger.Info("Job transition",
			zap.String("job_id", jobID),
			zap.String("from", string(prevStatus)),
			zap.String("to", string(job.Status)),
		)
	}

	if err := p.canvases.SaveJob(ctx, job); err != nil {
		p.logger.Error("Failed to persist job transition",
			zap.String("job_id", jobID), zap.Error(err))
	}
	if p.notifier != nil {
		p.notifier.NotifyJobUpdate(session.SessionID, job)
	}
	if job.Status.IsTerminal() {
		p.sessions.Persist(ctx, session)
	}
}

// fail marks a job failed with the given message.
func (p *Poller) fail(ctx context.Context, session *Session, jobID, message string) {
	status := models.JobStatusFailed
	job, err := session.Registry().MutateByID(jobID, models.JobPatch{
		Status:       &status,
		ErrorMessage: &message,
	})
	if err != nil {
		return
	}
	pollTransitionsTotal.WithLabelValues(string(models.JobStatusFailed)).Inc()
	p.logger.Warn("Job failed", zap.String("job_id", jobID), zap.String("reason", message))
	if err := p.canvases.SaveJob(ctx, job); err != nil {
		p.logger.Error("Failed to persist failed job",
			zap.String("job_id", jobID), zap.Error(err))
	}
	if p.notifier != nil {
		p.notifier.NotifyJobUpdate(session.SessionID, job)
	}
}
