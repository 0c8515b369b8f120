package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
)

const (
	getCreditAccountQuery = `
		SELECT user_id, used, plan_limit, purchased, status
		FROM credit_accounts
		WHERE user_id = $1
	`
	// The WHERE clause is the credit-exhaustion guard: the debit applies
	// only while remaining >= amount, atomically.
	tryDebitQuery = `
		UPDATE credit_accounts
		SET used = used + $2, updated_at = now()
		WHERE user_id = $1 AND plan_limit + purchased - used >= $2
		RETURNING used, plan_limit, purchased, status
	`
	refundQuery = `
		UPDATE credit_accounts
		SET used = GREATEST(used - $2, 0), updated_at = now()
		WHERE user_id = $1
		RETURNING used, plan_limit, purchased, status
	`
	upsertCreditAccountQuery = `
		INSERT INTO credit_accounts (user_id, used, plan_limit, purchased, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			used = EXCLUDED.used,
			plan_limit = EXCLUDED.plan_limit,
			purchased = EXCLUDED.purchased,
			status = EXCLUDED.status,
			updated_at = now()
	`
)

// CreditRepository is the authoritative side of credit metering. Every
// balance it returns has Remaining >= 0; optimistic client state is never
// written back through it.
type CreditRepository interface {
	GetBalance(ctx context.Context, userID string) (models.CreditBalance, error)
	// TryDebit atomically debits amount if affordable. On insufficient
	// credits it returns *models.InsufficientCreditsError carrying the
	// authoritative remaining.
	TryDebit(ctx context.Context, userID string, amount int) (models.CreditBalance, error)
	// Refund returns credits after a submission that was debited but never
	// reached the provider.
	Refund(ctx context.Context, userID string, amount int) (models.CreditBalance, error)
	Upsert(ctx context.Context, userID string, balance models.CreditBalance) error
}

type pgCreditRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgCreditRepository creates a Postgres-backed CreditRepository.
func NewPgCreditRepository(pool *pgxpool.Pool, logger *zap.Logger) CreditRepository {
	return &pgCreditRepository{
		pool:   pool,
		logger: logger.Named("PgCreditRepo"),
	}
}

func (r *pgCreditRepository) GetBalance(ctx context.Context, userID string) (models.CreditBalance, error) {
	row := r.pool.QueryRow(ctx, getCreditAccountQuery, userID)
	balance, err := scanCreditBalance(row)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			r.logger.Warn("Credit account not found", zap.String("user_id", userID))
			return models.CreditBalance{}, models.ErrAccountNotFound
		}
		r.logger.Error("Failed to get credit balance", zap.String("user_id", userID), zap.Error(err))
		return models.CreditBalance{}, fmt.Errorf("error getting credit balance: %w", err)
	}
	return balance, nil
}

func (r *pgCreditRepository) TryDebit(ctx context.Context, userID string, amount int) (models.CreditBalance, error) {
	row := r.pool.QueryRow(ctx, tryDebitQuery, userID, amount)
	balance, err := scanCreditBalance(row)
	if err == nil {
		r.logger.Debug("Credits debited",
			zap.String("user_id", userID),
			zap.Int("amount", amount),
			zap.Int("remaining", balance.Remaining),
		)
		return balance, nil
	}
	if !errors.Is(err, models.ErrAccountNotFound) {
		r.logger.Error("Failed to debit credits", zap.String("user_id", userID), zap.Error(err))
		return models.CreditBalance{}, fmt.Errorf("error debiting credits: %w", err)
	}

	// No row matched: either the account does not exist, or the guard held
	// the debit back. Disambiguate with a plain read.
	current, getErr := r.GetBalance(ctx, userID)
	if getErr != nil {
		return models.CreditBalance{}, getErr
	}
	r.logger.Info("Debit rejected, insufficient credits",
		zap.String("user_id", userID),
		zap.Int("required", amount),
		zap.Int("remaining", current.Remaining),
	)
	return models.CreditBalance{}, &models.InsufficientCreditsError{
		Required:  amount,
		Remaining: current.Remaining,
	}
}

func (r *pgCreditRepository) Refund(ctx context.Context, userID string, amount int) (models.CreditBalance, error) {
	row := r.pool.QueryRow(ctx, refundQuery, userID, amount)
	balance, err := scanCreditBalance(row)
	if err != nil {
		r.logger.Error("Failed to refund credits", zap.String("user_id", userID), zap.Error(err))
		return models.CreditBalance{}, fmt.Errorf("error refunding credits: %w", err)
	}
	return balance, nil
}

func (r *pgCreditRepository) Upsert(ctx context.Context, userID string, balance models.CreditBalance) error {
	status := balance.Status
	if status == "" {
		status = "active"
	}
	_, err := r.pool.Exec(ctx, upsertCreditAccountQuery,
		userID, balance.Used, balance.PlanLimit, balance.Purchased, status)
	if err != nil {
		r.logger.Error("Failed to upsert credit account", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("error upserting credit account: %w", err)
	}
	return nil
}

// scanCreditBalance scans one credit_accounts row and derives the computed
// fields.
func scanCreditBalance(row pgx.Row) (models.CreditBalance, error) {
	var balance models.CreditBalance
	var userID string
	err := row.Scan(&userID, &balance.Used, &balance.PlanLimit, &balance.Purchased, &balance.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CreditBalance{}, models.ErrAccountNotFound
		}
		return models.CreditBalance{}, fmt.Errorf("error scanning credit balance: %w", err)
	}
	balance.Derive()
	return balance, nil
}
