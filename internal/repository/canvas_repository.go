package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
)

const (
	insertCanvasQuery = `
		INSERT INTO canvases (id, user_id, product_knowledge, hook, captions, cta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	getCanvasQuery = `
		SELECT id, user_id, product_knowledge, hook, captions, cta, created_at
		FROM canvases
		WHERE id = $1
	`
	upsertJobQuery = `
		INSERT INTO generation_jobs (
			id, canvas_id, slot_index, status, provider, quality, prompt,
			duration_seconds, target_duration_seconds, progress_pct,
			final_video_url, raw_video_url, thumbnail_url,
			extension_step, extension_total, error_message, credit_cost,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			duration_seconds = EXCLUDED.duration_seconds,
			target_duration_seconds = EXCLUDED.target_duration_seconds,
			progress_pct = EXCLUDED.progress_pct,
			final_video_url = EXCLUDED.final_video_url,
			raw_video_url = EXCLUDED.raw_video_url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			extension_step = EXCLUDED.extension_step,
			extension_total = EXCLUDED.extension_total,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`
	listJobsByCanvasQuery = `
		SELECT
			id, canvas_id, slot_index, status, provider, quality, prompt,
			duration_seconds, target_duration_seconds, progress_pct,
			final_video_url, raw_video_url, thumbnail_url,
			extension_step, extension_total, error_message, credit_cost,
			created_at, updated_at
		FROM generation_jobs
		WHERE canvas_id = $1
		ORDER BY created_at DESC
	`
	getJobQuery = `
		SELECT
			id, canvas_id, slot_index, status, provider, quality, prompt,
			duration_seconds, target_duration_seconds, progress_pct,
			final_video_url, raw_video_url, thumbnail_url,
			extension_step, extension_total, error_message, credit_cost,
			created_at, updated_at
		FROM generation_jobs
		WHERE id = $1
	`
)

// jobRow mirrors the generation_jobs table for scany.
type jobRow struct {
	ID                    string    `db:"id"`
	CanvasID              string    `db:"canvas_id"`
	SlotIndex             int32     `db:"slot_index"`
	Status                string    `db:"status"`
	Provider              string    `db:"provider"`
	Quality               string    `db:"quality"`
	Prompt                string    `db:"prompt"`
	DurationSeconds       int       `db:"duration_seconds"`
	TargetDurationSeconds int       `db:"target_duration_seconds"`
	ProgressPct           int       `db:"progress_pct"`
	FinalVideoURL         string    `db:"final_video_url"`
	RawVideoURL           string    `db:"raw_video_url"`
	ThumbnailURL          string    `db:"thumbnail_url"`
	ExtensionStep         int       `db:"extension_step"`
	ExtensionTotal        int       `db:"extension_total"`
	ErrorMessage          string    `db:"error_message"`
	CreditCost            int       `db:"credit_cost"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// CanvasRepository persists canvases and their generation jobs. The job
// list it returns is the authoritative source the polling loop replaces
// registries from.
type CanvasRepository interface {
	CreateCanvas(ctx context.Context, canvas *models.Canvas) error
	GetCanvas(ctx context.Context, id uuid.UUID) (*models.Canvas, error)
	SaveJob(ctx context.Context, job *models.GenerationJob) error
	GetJob(ctx context.Context, jobID string) (*models.GenerationJob, error)
	ListJobsByCanvas(ctx context.Context, canvasID uuid.UUID) ([]*models.GenerationJob, error)
}

type pgCanvasRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgCanvasRepository creates a Postgres-backed CanvasRepository.
func NewPgCanvasRepository(pool *pgxpool.Pool, logger *zap.Logger) CanvasRepository {
	return &pgCanvasRepository{
		pool:   pool,
		logger: logger.Named("PgCanvasRepo"),
	}
}

func (r *pgCanvasRepository) CreateCanvas(ctx context.Context, canvas *models.Canvas) error {
	_, err := r.pool.Exec(ctx, insertCanvasQuery,
		canvas.ID.String(),
		canvas.UserID,
		canvas.ProductKnowledge,
		canvas.Hook,
		canvas.Captions,
		canvas.CTA,
		canvas.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create canvas", zap.String("canvas_id", canvas.ID.String()), zap.Error(err))
		return fmt.Errorf("error creating canvas: %w", err)
	}
	r.logger.Debug("Canvas created", zap.String("canvas_id", canvas.ID.String()))
	return nil
}

func (r *pgCanvasRepository) GetCanvas(ctx context.Context, id uuid.UUID) (*models.Canvas, error) {
	var canvas models.Canvas
	var rawID string
	row := r.pool.QueryRow(ctx, getCanvasQuery, id.String())
	err := row.Scan(&rawID, &canvas.UserID, &canvas.ProductKnowledge, &canvas.Hook, &canvas.Captions, &canvas.CTA, &canvas.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCanvasNotFound
		}
		r.logger.Error("Failed to get canvas", zap.String("canvas_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("error getting canvas: %w", err)
	}
	canvas.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("error parsing canvas id: %w", err)
	}
	return &canvas, nil
}

func (r *pgCanvasRepository) SaveJob(ctx context.Context, job *models.GenerationJob) error {
	_, err := r.pool.Exec(ctx, upsertJobQuery,
		job.ID,
		job.CanvasID.String(),
		int32(job.SlotIndex),
		string(job.Status),
		string(job.Provider),
		string(job.Quality),
		job.Prompt,
		job.DurationSeconds,
		job.TargetDurationSeconds,
		job.ProgressPct,
		job.FinalVideoURL,
		job.RawVideoURL,
		job.ThumbnailURL,
		job.ExtensionStep,
		job.ExtensionTotal,
		job.ErrorMessage,
		job.CreditCost,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save job", zap.String("job_id", job.ID), zap.Error(err))
		return fmt.Errorf("error saving generation job: %w", err)
	}
	return nil
}

func (r *pgCanvasRepository) GetJob(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	var row jobRow
	if err := pgxscan.Get(ctx, r.pool, &row, getJobQuery, jobID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrJobNotFound
		}
		r.logger.Error("Failed to get job", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("error getting generation job: %w", err)
	}
	return rowToJob(&row)
}

func (r *pgCanvasRepository) ListJobsByCanvas(ctx context.Context, canvasID uuid.UUID) ([]*models.GenerationJob, error) {
	var rows []*jobRow
	if err := pgxscan.Select(ctx, r.pool, &rows, listJobsByCanvasQuery, canvasID.String()); err != nil {
		r.logger.Error("Failed to list jobs", zap.String("canvas_id", canvasID.String()), zap.Error(err))
		return nil, fmt.Errorf("error listing generation jobs: %w", err)
	}
	jobs := make([]*models.GenerationJob, 0, len(rows))
	for _, row := range rows {
		job, err := rowToJob(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func rowToJob(row *jobRow) (*models.GenerationJob, error) {
	canvasID, err := uuid.Parse(row.CanvasID)
	if err != nil {
		return nil, fmt.Errorf("error parsing canvas id on job %s: %w", row.ID, err)
	}
	return &models.GenerationJob{
		ID:                    row.ID,
		CanvasID:              canvasID,
		SlotIndex:             models.SlotID(row.SlotIndex),
		Status:                models.JobStatus(row.Status),
		Provider:              models.Provider(row.Provider),
		Quality:               models.QualityTier(row.Quality),
		Prompt:                row.Prompt,
		DurationSeconds:       row.DurationSeconds,
		TargetDurationSeconds: row.TargetDurationSeconds,
		ProgressPct:           row.ProgressPct,
		FinalVideoURL:         row.FinalVideoURL,
		RawVideoURL:           row.RawVideoURL,
		ThumbnailURL:          row.ThumbnailURL,
		ExtensionStep:         row.ExtensionStep,
		ExtensionTotal:        row.ExtensionTotal,
		ErrorMessage:          row.ErrorMessage,
		CreditCost:            row.CreditCost,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}, nil
}
