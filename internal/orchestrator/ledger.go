package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"adstudio-server/internal/models"
)

// BalanceSource is the authoritative side of the credit ledger: the usage
// store backed by Postgres.
type BalanceSource interface {
	GetBalance(ctx context.Context, userID string) (models.CreditBalance, error)
}

// CreditLedger is the session-side view of a user's generation credits.
// It supports optimistic local decrements between authoritative refreshes;
// a refresh always overwrites optimistic state wholesale (last authoritative
// write wins), never merges. Optimistic state is never persisted.
type CreditLedger struct {
	mu      sync.RWMutex
	userID  string
	source  BalanceSource
	balance models.CreditBalance
	loaded  bool
}

// NewCreditLedger creates a ledger for the user. Call Refresh before the
// first affordability check.
func NewCreditLedger(userID string, source BalanceSource) *CreditLedger {
	return &CreditLedger{userID: userID, source: source}
}

// Refresh fetches the authoritative balance and overwrites local state.
func (l *CreditLedger) Refresh(ctx context.Context) (models.CreditBalance, error) {
	balance, err := l.source.GetBalance(ctx, l.userID)
	if err != nil {
		return models.CreditBalance{}, fmt.Errorf("failed to refresh credit balance: %w", err)
	}

	l.mu.Lock()
	l.balance = balance
	l.loaded = true
	l.mu.Unlock()
	return balance, nil
}

// Debit applies an optimistic local decrement. Call it exactly once per
// accepted submission; it is local-only and corrected by the next Refresh.
func (l *CreditLedger) Debit(amount int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance.Used += amount
	l.balance.Derive()
}

// Reconcile overwrites the remaining-derived state from an authoritative
// remaining value carried by a credit-exhausted rejection, avoiding a full
// refresh round-trip.
func (l *CreditLedger) Reconcile(serverRemaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance.Used = l.balance.TotalAvailable - serverRemaining
	l.balance.Derive()
}

// Remaining returns the current (possibly optimistic) remaining credits.
// Affordability checks must call this at the moment of the action, since a
// concurrent Debit may have changed it.
func (l *CreditLedger) Remaining() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance.Remaining
}

// CanAfford re-checks affordability against the current state.
func (l *CreditLedger) CanAfford(cost int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded && l.balance.Remaining >= cost
}

// Balance returns a copy of the current view.
func (l *CreditLedger) Balance() models.CreditBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}
