package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/provider"
)

type MockCanvasRepository struct {
	mock.Mock
}

func (m *MockCanvasRepository) CreateCanvas(ctx context.Context, canvas *models.Canvas) error {
	args := m.Called(ctx, canvas)
	return args.Error(0)
}

func (m *MockCanvasRepository) GetCanvas(ctx context.Context, id uuid.UUID) (*models.Canvas, error) {
	args := m.Called(ctx, id)
	if canvas, ok := args.Get(0).(*models.Canvas); ok {
		return canvas, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCanvasRepository) SaveJob(ctx context.Context, job *models.GenerationJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockCanvasRepository) GetJob(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	args := m.Called(ctx, jobID)
	if job, ok := args.Get(0).(*models.GenerationJob); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCanvasRepository) ListJobsByCanvas(ctx context.Context, canvasID uuid.UUID) ([]*models.GenerationJob, error) {
	args := m.Called(ctx, canvasID)
	if jobs, ok := args.Get(0).([]*models.GenerationJob); ok {
		return jobs, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) GetBalance(ctx context.Context, userID string) (models.CreditBalance, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.CreditBalance), args.Error(1)
}

func (m *MockCreditRepository) TryDebit(ctx context.Context, userID string, amount int) (models.CreditBalance, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(models.CreditBalance), args.Error(1)
}

func (m *MockCreditRepository) Refund(ctx context.Context, userID string, amount int) (models.CreditBalance, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(models.CreditBalance), args.Error(1)
}

func (m *MockCreditRepository) Upsert(ctx context.Context, userID string, balance models.CreditBalance) error {
	args := m.Called(ctx, userID, balance)
	return args.Error(0)
}

type MockVideoGenerator struct {
	mock.Mock
}

func (m *MockVideoGenerator) Submit(ctx context.Context, req provider.SubmitRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockVideoGenerator) Poll(ctx context.Context, jobID string) (provider.JobState, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(provider.JobState), args.Error(1)
}

func (m *MockVideoGenerator) Extend(ctx context.Context, jobID string) (provider.ExtendResult, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(provider.ExtendResult), args.Error(1)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Save(ctx context.Context, snapshot *models.SessionSnapshot, ttl time.Duration) error {
	args := m.Called(ctx, snapshot, ttl)
	return args.Error(0)
}

func (m *MockSessionStore) Load(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if snap, ok := args.Get(0).(*models.SessionSnapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

type MockScriptWriter struct {
	mock.Mock
}

func (m *MockScriptWriter) WriteScript(ctx context.Context, productKnowledge string, presenter models.PresenterSettings) (models.UGCScript, error) {
	args := m.Called(ctx, productKnowledge, presenter)
	return args.Get(0).(models.UGCScript), args.Error(1)
}

// recordingNotifier collects fan-out calls for assertions.
type recordingNotifier struct {
	updates []string
}

func (n *recordingNotifier) NotifyJobUpdate(_ string, job *models.GenerationJob) {
	n.updates = append(n.updates, job.ID)
}

// newTestSession builds a live session without going through Redis.
func newTestSession(userID string, credits BalanceSource) *Session {
	return &Session{
		SessionID:  "sess-" + userID,
		UserID:     userID,
		registry:   NewVersionRegistry(),
		ledger:     NewCreditLedger(userID, credits),
		stage:      models.ScriptStageNone,
		lastAccess: time.Now(),
	}
}

// newTestSessionManager wires a manager whose store never has snapshots.
func newTestSessionManager(canvases *MockCanvasRepository, credits *MockCreditRepository) *SessionManager {
	store := new(MockSessionStore)
	store.On("Load", mock.Anything, mock.Anything).Return(nil, models.ErrSessionNotFound).Maybe()
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return NewSessionManager(store, canvases, credits, time.Hour, zap.NewNop())
}
