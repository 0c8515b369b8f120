package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
)

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	canvases := new(MockCanvasRepository)
	credits := new(MockCreditRepository)
	credits.On("GetBalance", mock.Anything, mock.Anything).
		Return(models.CreditBalance{}, nil).Maybe()
	m := newTestSessionManager(canvases, credits)

	first, err := m.GetOrCreate(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)
	second, err := m.GetOrCreate(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestGetUnknownSession(t *testing.T) {
	m := newTestSessionManager(new(MockCanvasRepository), new(MockCreditRepository))
	_, err := m.Get("missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRestoreRebuildsRegistryFromSnapshot(t *testing.T) {
	canvasID := uuid.New()
	snapshot := &models.SessionSnapshot{
		SessionID:   "sess-1",
		UserID:      "user-1",
		CanvasID:    &canvasID,
		ScriptStage: models.ScriptStageReady,
		Script:      &models.UGCScript{Prompt: "saved draft"},
	}

	store := new(MockSessionStore)
	store.On("Load", mock.Anything, "sess-1").Return(snapshot, nil).Once()
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	canvases := new(MockCanvasRepository)
	canvases.On("ListJobsByCanvas", mock.Anything, canvasID).Return([]*models.GenerationJob{
		{ID: "j2", CanvasID: canvasID, SlotIndex: 0, Status: models.JobStatusComplete},
		{ID: "j1", CanvasID: canvasID, SlotIndex: 0, Status: models.JobStatusComplete},
	}, nil).Once()

	credits := new(MockCreditRepository)
	balance := models.CreditBalance{Used: 70, PlanLimit: 100}
	balance.Derive()
	credits.On("GetBalance", mock.Anything, "user-1").Return(balance, nil).Once()

	m := NewSessionManager(store, canvases, credits, time.Hour, zap.NewNop())
	session, err := m.GetOrCreate(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)

	require.NotNil(t, session.CanvasID())
	assert.Equal(t, canvasID, *session.CanvasID())
	assert.Equal(t, 2, session.Registry().VersionCount(0))
	assert.Equal(t, 30, session.Ledger().Remaining())

	script, stage := session.Script()
	require.NotNil(t, script)
	assert.Equal(t, "saved draft", script.Prompt)
	assert.Equal(t, models.ScriptStageReady, stage)
}

func TestRestoreDowngradesInFlightScriptStages(t *testing.T) {
	snapshot := &models.SessionSnapshot{
		SessionID:   "sess-1",
		UserID:      "user-1",
		ScriptStage: models.ScriptStageDrafting,
	}
	store := new(MockSessionStore)
	store.On("Load", mock.Anything, "sess-1").Return(snapshot, nil).Once()

	credits := new(MockCreditRepository)
	credits.On("GetBalance", mock.Anything, mock.Anything).
		Return(models.CreditBalance{}, nil).Maybe()

	m := NewSessionManager(store, new(MockCanvasRepository), credits, time.Hour, zap.NewNop())
	session, err := m.GetOrCreate(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)

	// The draft request died with the old process; the gate must not be
	// stuck in drafting forever.
	_, stage := session.Script()
	assert.Equal(t, models.ScriptStageNone, stage)
}

func TestSweepSkipsSessionsWithJobsInFlight(t *testing.T) {
	store := new(MockSessionStore)
	store.On("Load", mock.Anything, mock.Anything).Return(nil, models.ErrSessionNotFound)
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	credits := new(MockCreditRepository)
	m := NewSessionManager(store, new(MockCanvasRepository), credits, time.Nanosecond, zap.NewNop())

	busy, err := m.GetOrCreate(context.Background(), "busy", "user-1")
	require.NoError(t, err)
	busy.Registry().AppendVersion(0, newJob("j1", 0, models.JobStatusGenerating))

	idle, err := m.GetOrCreate(context.Background(), "idle", "user-2")
	require.NoError(t, err)
	_ = idle

	time.Sleep(5 * time.Millisecond) // let both sessions pass the TTL
	m.sweep(context.Background())

	_, err = m.Get("busy")
	assert.NoError(t, err, "in-flight session survives the sweep")
	_, err = m.Get("idle")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}
