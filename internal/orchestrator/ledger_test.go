package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adstudio-server/internal/models"
)

type staticBalanceSource struct {
	balance models.CreditBalance
	err     error
}

func (s *staticBalanceSource) GetBalance(_ context.Context, _ string) (models.CreditBalance, error) {
	return s.balance, s.err
}

func newTestBalance(used, planLimit, purchased int) models.CreditBalance {
	b := models.CreditBalance{Used: used, PlanLimit: planLimit, Purchased: purchased}
	b.Derive()
	return b
}

func TestLedgerRefreshOverwritesOptimisticState(t *testing.T) {
	source := &staticBalanceSource{balance: newTestBalance(10, 100, 0)}
	ledger := NewCreditLedger("user-1", source)

	_, err := ledger.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90, ledger.Remaining())

	ledger.Debit(20)
	assert.Equal(t, 70, ledger.Remaining())

	// The authoritative refresh wins wholesale, even against local debits.
	source.balance = newTestBalance(40, 100, 0)
	_, err = ledger.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60, ledger.Remaining())
}

func TestLedgerRefreshError(t *testing.T) {
	ledger := NewCreditLedger("user-1", &staticBalanceSource{err: errors.New("db down")})
	_, err := ledger.Refresh(context.Background())
	assert.Error(t, err)
	assert.False(t, ledger.CanAfford(1), "unloaded ledger affords nothing")
}

func TestLedgerDebitAndAfford(t *testing.T) {
	ledger := NewCreditLedger("user-1", &staticBalanceSource{balance: newTestBalance(0, 50, 0)})
	_, err := ledger.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, ledger.CanAfford(50))
	ledger.Debit(30)
	assert.True(t, ledger.CanAfford(20))
	assert.False(t, ledger.CanAfford(21))
}

func TestLedgerReconcileFromRejection(t *testing.T) {
	ledger := NewCreditLedger("user-1", &staticBalanceSource{balance: newTestBalance(0, 100, 20)})
	_, err := ledger.Refresh(context.Background())
	require.NoError(t, err)

	// A concurrent spend elsewhere: the rejection says only 5 remain.
	ledger.Reconcile(5)
	assert.Equal(t, 5, ledger.Remaining())
	assert.Equal(t, 115, ledger.Balance().Used)
	assert.False(t, ledger.CanAfford(20))
}
