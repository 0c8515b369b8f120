package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/provider"
	"adstudio-server/internal/repository"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_submissions_total",
			Help: "Generation submissions by quality tier and outcome.",
		},
		[]string{"quality", "outcome"},
	)
	creditsDebitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adstudio_credits_debited_total",
		Help: "Total credits debited for accepted submissions.",
	})
)

// SubmitParams carries one generation submission.
type SubmitParams struct {
	SlotIndex       models.SlotID
	Prompt          string
	DurationSeconds int
	Quality         models.QualityTier

	// Canvas metadata, applied when the submission creates the canvas.
	ProductKnowledge string
	Hook             string
	Captions         string
	CTA              string
}

// Gateway is the submission pipeline: it prices the request, debits credits
// atomically, hands the request to the provider, registers the new version
// and arms the polling loop. Failures after the debit refund it.
type Gateway struct {
	canvases repository.CanvasRepository
	credits  repository.CreditRepository
	video    provider.VideoGenerator
	sessions *SessionManager
	poller   *Poller
	logger   *zap.Logger
}

// NewGateway creates a Gateway.
func NewGateway(
	canvases repository.CanvasRepository,
	credits repository.CreditRepository,
	video provider.VideoGenerator,
	sessions *SessionManager,
	poller *Poller,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		canvases: canvases,
		credits:  credits,
		video:    video,
		sessions: sessions,
		poller:   poller,
		logger:   logger.Named("Gateway"),
	}
}

// Submit runs the full submission pipeline for one slot. On success the
// returned job is already registered as the slot's newest version and the
// polling loop is running.
func (g *Gateway) Submit(ctx context.Context, session *Session, params SubmitParams) (*models.GenerationJob, error) {
	if params.DurationSeconds <= 0 {
		params.DurationSeconds = BaseDurationSeconds
	}
	if params.Quality == "" {
		params.Quality = models.QualityStandard
	}
	cost := CreditCost(params.Quality, params.DurationSeconds)

	canvasID, err := g.ensureCanvas(ctx, session, params)
	if err != nil {
		submissionsTotal.WithLabelValues(string(params.Quality), "error").Inc()
		return nil, err
	}

	if _, err := g.credits.TryDebit(ctx, session.UserID, cost); err != nil {
		var insufficient *models.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			// The rejection carries the authoritative remaining; fold it
			// into the optimistic ledger so the next check agrees.
			session.Ledger().Reconcile(insufficient.Remaining)
			submissionsTotal.WithLabelValues(string(params.Quality), "insufficient_credits").Inc()
			g.logger.Info("Submission rejected, insufficient credits",
				zap.String("user_id", session.UserID),
				zap.Int("required", cost),
				zap.Int("remaining", insufficient.Remaining),
			)
			return nil, err
		}
		submissionsTotal.WithLabelValues(string(params.Quality), "error").Inc()
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}

	req := provider.SubmitRequest{
		Prompt:          params.Prompt,
		DurationSeconds: params.DurationSeconds,
		Quality:         params.Quality,
		Provider:        ProviderFor(params.DurationSeconds),
	}
	if img := session.Image(); img != nil {
		req.ImageData = img.Data
		req.ImageMime = img.MimeType
	}

	jobID, err := g.video.Submit(ctx, req)
	if err != nil {
		g.refund(ctx, session, cost)
		submissionsTotal.WithLabelValues(string(params.Quality), "provider_error").Inc()
		g.logger.Error("Provider rejected submission",
			zap.String("user_id", session.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", models.ErrProviderFailure, err.Error())
	}

	now := time.Now().UTC()
	job := &models.GenerationJob{
		ID:                    jobID,
		CanvasID:              canvasID,
		SlotIndex:             params.SlotIndex,
		Status:                models.JobStatusQueued,
		Provider:              req.Provider,
		Quality:               params.Quality,
		Prompt:                params.Prompt,
		DurationSeconds:       params.DurationSeconds,
		TargetDurationSeconds: params.DurationSeconds,
		ExtensionTotal:        ExtensionSegments(params.DurationSeconds),
		CreditCost:            cost,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	// Register eagerly so the slot shows the queued version before the
	// first poll comes back.
	session.Registry().AppendVersion(params.SlotIndex, job)
	session.Ledger().Debit(cost)

	if err := g.canvases.SaveJob(ctx, job); err != nil {
		g.logger.Error("Failed to persist submitted job",
			zap.String("job_id", job.ID), zap.Error(err))
	}
	g.poller.Ensure(context.WithoutCancel(ctx), session)
	g.sessions.Persist(ctx, session)

	submissionsTotal.WithLabelValues(string(params.Quality), "accepted").Inc()
	creditsDebitedTotal.Add(float64(cost))
	g.logger.Info("Submission accepted",
		zap.String("job_id", job.ID),
		zap.String("canvas_id", canvasID.String()),
		zap.Int32("slot", int32(params.SlotIndex)),
		zap.String("quality", string(params.Quality)),
		zap.Int("duration_s", params.DurationSeconds),
		zap.Int("cost", cost),
	)
	return job, nil
}

// Extend lengthens a completed job by one 7-second segment. The job mutates
// in place: same id, same slot position, status back to extending.
func (g *Gateway) Extend(ctx context.Context, session *Session, jobID string) (*models.GenerationJob, error) {
	job, err := session.Registry().MutateByID(jobID, models.JobPatch{})
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusComplete {
		return nil, models.ErrJobNotExtendable
	}

	p, ok := pricingByTier[job.Quality]
	if !ok {
		p = pricingByTier[models.QualityStandard]
	}
	cost := p.Extension

	if _, err := g.credits.TryDebit(ctx, session.UserID, cost); err != nil {
		var insufficient *models.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			session.Ledger().Reconcile(insufficient.Remaining)
			return nil, err
		}
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}

	result, err := g.video.Extend(ctx, jobID)
	if err != nil {
		g.refund(ctx, session, cost)
		if errors.Is(err, models.ErrJobNotExtendable) || errors.Is(err, models.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", models.ErrProviderFailure, err.Error())
	}

	status := models.JobStatusExtending
	patch := models.JobPatch{Status: &status}
	if result.TargetDurationSeconds > 0 {
		patch.TargetDurationSeconds = &result.TargetDurationSeconds
	} else {
		target := job.DurationSeconds + ExtensionStepSeconds
		patch.TargetDurationSeconds = &target
	}
	if result.ExtensionStep > 0 {
		patch.ExtensionStep = &result.ExtensionStep
	}
	if result.ExtensionTotal > 0 {
		patch.ExtensionTotal = &result.ExtensionTotal
	}
	job, err = session.Registry().MutateByID(jobID, patch)
	if err != nil {
		return nil, err
	}
	session.Ledger().Debit(cost)
	job.CreditCost += cost

	if err := g.canvases.SaveJob(ctx, job); err != nil {
		g.logger.Error("Failed to persist extended job",
			zap.String("job_id", job.ID), zap.Error(err))
	}
	g.poller.Ensure(context.WithoutCancel(ctx), session)
	g.sessions.Persist(ctx, session)

	creditsDebitedTotal.Add(float64(cost))
	g.logger.Info("Extension started",
		zap.String("job_id", job.ID),
		zap.Int("target_duration_s", job.TargetDurationSeconds),
		zap.Int("cost", cost),
	)
	return job, nil
}

// ExtendActive extends whichever version the slot currently displays.
func (g *Gateway) ExtendActive(ctx context.Context, session *Session, slot models.SlotID) (*models.GenerationJob, error) {
	job, err := session.Registry().MutateActive(slot, models.JobPatch{})
	if err != nil {
		return nil, err
	}
	return g.Extend(ctx, session, job.ID)
}

// ListJobs returns the persisted jobs of a canvas, newest first.
func (g *Gateway) ListJobs(ctx context.Context, canvasID uuid.UUID) ([]*models.GenerationJob, error) {
	if _, err := g.canvases.GetCanvas(ctx, canvasID); err != nil {
		return nil, err
	}
	return g.canvases.ListJobsByCanvas(ctx, canvasID)
}

// CreateCanvas creates a canvas explicitly, ahead of the first submission.
func (g *Gateway) CreateCanvas(ctx context.Context, session *Session, params SubmitParams) (*models.Canvas, error) {
	id, err := g.ensureCanvas(ctx, session, params)
	if err != nil {
		return nil, err
	}
	return g.canvases.GetCanvas(ctx, id)
}

// ensureCanvas returns the session's canvas id, creating and binding the
// canvas on first use.
func (g *Gateway) ensureCanvas(ctx context.Context, session *Session, params SubmitParams) (uuid.UUID, error) {
	if id := session.CanvasID(); id != nil {
		return *id, nil
	}
	canvas := &models.Canvas{
		ID:               uuid.New(),
		UserID:           session.UserID,
		ProductKnowledge: params.ProductKnowledge,
		Hook:             params.Hook,
		Captions:         params.Captions,
		CTA:              params.CTA,
		CreatedAt:        time.Now().UTC(),
	}
	if err := g.canvases.CreateCanvas(ctx, canvas); err != nil {
		return uuid.UUID{}, err
	}
	session.BindCanvas(canvas.ID)
	g.logger.Info("Canvas created",
		zap.String("canvas_id", canvas.ID.String()),
		zap.String("session_id", session.SessionID),
	)
	return canvas.ID, nil
}

// refund returns credits debited for a submission the provider never took.
func (g *Gateway) refund(ctx context.Context, session *Session, amount int) {
	if _, err := g.credits.Refund(ctx, session.UserID, amount); err != nil {
		g.logger.Error("Failed to refund credits",
			zap.String("user_id", session.UserID),
			zap.Int("amount", amount),
			zap.Error(err),
		)
		return
	}
	g.logger.Info("Credits refunded",
		zap.String("user_id", session.UserID), zap.Int("amount", amount))
}
