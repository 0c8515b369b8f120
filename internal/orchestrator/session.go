package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/repository"
)

// Session is the in-memory state of one studio session: the canvas binding,
// per-slot version registry, optimistic credit ledger, script gate state and
// the uploaded source image. All cross-field coordination goes through mu;
// the registry and ledger carry their own locks.
type Session struct {
	mu sync.RWMutex

	SessionID string
	UserID    string

	canvasID  *uuid.UUID
	registry  *VersionRegistry
	ledger    *CreditLedger
	image     *models.SourceImage
	script    *models.UGCScript
	stage     models.ScriptStage
	presenter *models.PresenterSettings

	lastAccess time.Time
}

// Registry returns the session's version registry.
func (s *Session) Registry() *VersionRegistry { return s.registry }

// Ledger returns the session's credit ledger.
func (s *Session) Ledger() *CreditLedger { return s.ledger }

// CanvasID returns the bound canvas id, or nil before the first submission.
func (s *Session) CanvasID() *uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.canvasID == nil {
		return nil
	}
	id := *s.canvasID
	return &id
}

// BindCanvas records the canvas created for this session. First write wins;
// a session is bound to exactly one canvas.
func (s *Session) BindCanvas(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canvasID == nil {
		s.canvasID = &id
	}
}

// SetImage stores the uploaded source image for subsequent submissions.
func (s *Session) SetImage(img *models.SourceImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = img
}

// Image returns the current source image, or nil.
func (s *Session) Image() *models.SourceImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.image
}

// Script returns a copy of the current script (nil when none) and the gate
// stage.
func (s *Session) Script() (*models.UGCScript, models.ScriptStage) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.script == nil {
		return nil, s.stage
	}
	cp := *s.script
	return &cp, s.stage
}

// beginDrafting moves the gate into drafting, rejecting a second draft while
// one is already in flight or while an approval is being submitted.
func (s *Session) beginDrafting(presenter *models.PresenterSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.stage {
	case models.ScriptStageDrafting:
		return models.ErrScriptDrafting
	case models.ScriptStageSubmitting:
		return models.ErrScriptNotEditable
	}
	s.stage = models.ScriptStageDrafting
	if presenter != nil {
		s.presenter = presenter
	}
	return nil
}

// finishDrafting records the draft outcome. On failure the gate falls back
// to its pre-draft stage (ready if a previous script exists).
func (s *Session) finishDrafting(script *models.UGCScript, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.script = script
		s.stage = models.ScriptStageReady
		return
	}
	if s.script != nil {
		s.stage = models.ScriptStageReady
	} else {
		s.stage = models.ScriptStageNone
	}
}

// editScript applies reviewer edits. Edits are local and only legal while
// the script sits in review.
func (s *Session) editScript(patch models.ScriptPatch) (*models.UGCScript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.script == nil {
		return nil, models.ErrNoScript
	}
	if s.stage != models.ScriptStageReady {
		return nil, models.ErrScriptNotEditable
	}
	s.script.Apply(patch)
	cp := *s.script
	return &cp, nil
}

// beginSubmitting freezes the edited script for approval and returns a copy
// of it. Only a script in review can be approved.
func (s *Session) beginSubmitting() (*models.UGCScript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.script == nil {
		return nil, models.ErrNoScript
	}
	switch s.stage {
	case models.ScriptStageDrafting:
		return nil, models.ErrScriptDrafting
	case models.ScriptStageSubmitting:
		return nil, models.ErrScriptNotEditable
	}
	s.stage = models.ScriptStageSubmitting
	cp := *s.script
	return &cp, nil
}

// finishSubmitting returns the gate to review so the script can be tweaked
// and approved again as a new version.
func (s *Session) finishSubmitting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = models.ScriptStageReady
}

// Presenter returns the stored presenter settings, or nil.
func (s *Session) Presenter() *models.PresenterSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presenter
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

func (s *Session) expired(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastAccess) > ttl
}

// snapshot builds the durable subset persisted to Redis.
func (s *Session) snapshot() *models.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &models.SessionSnapshot{
		SessionID:   s.SessionID,
		UserID:      s.UserID,
		Script:      s.script,
		ScriptStage: s.stage,
		Presenter:   s.presenter,
		UpdatedAt:   time.Now().UTC(),
	}
	if s.canvasID != nil {
		id := *s.canvasID
		snap.CanvasID = &id
	}
	balance := s.ledger.Balance()
	snap.Balance = &balance

	snap.ActiveIndexes = make(map[models.SlotID]int)
	for slot := range s.registry.Snapshot() {
		if _, idx, err := s.registry.Active(slot); err == nil {
			snap.ActiveIndexes[slot] = idx
		}
	}
	return snap
}

// SessionManager owns the live sessions. Sessions are created on first
// touch, restored from their Redis snapshot when one exists, and swept out
// after the idle TTL.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store   repository.SessionStore
	canvas  repository.CanvasRepository
	credits BalanceSource
	ttl     time.Duration
	logger  *zap.Logger
}

// NewSessionManager creates a SessionManager. Call StartCleanup to arm the
// idle sweep.
func NewSessionManager(
	store repository.SessionStore,
	canvas repository.CanvasRepository,
	credits BalanceSource,
	ttl time.Duration,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		store:    store,
		canvas:   canvas,
		credits:  credits,
		ttl:      ttl,
		logger:   logger.Named("SessionManager"),
	}
}

// GetOrCreate returns the live session for the id, restoring it from Redis
// if a snapshot exists, or creating a fresh one.
func (m *SessionManager) GetOrCreate(ctx context.Context, sessionID, userID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		session.touch()
		return session, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok = m.sessions[sessionID]; ok {
		session.touch()
		return session, nil
	}

	session = &Session{
		SessionID:  sessionID,
		UserID:     userID,
		registry:   NewVersionRegistry(),
		ledger:     NewCreditLedger(userID, m.credits),
		stage:      models.ScriptStageNone,
		lastAccess: time.Now(),
	}
	if err := m.restore(ctx, session); err != nil {
		m.logger.Warn("Failed to restore session snapshot, starting fresh",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	m.sessions[sessionID] = session
	m.logger.Info("Session created", zap.String("session_id", sessionID), zap.String("user_id", userID))
	return session, nil
}

// Get returns the live session or ErrSessionNotFound.
func (m *SessionManager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	session.touch()
	return session, nil
}

// restore rehydrates a session from its Redis snapshot and rebuilds the
// registry from the persisted job list. Missing snapshot is not an error.
func (m *SessionManager) restore(ctx context.Context, session *Session) error {
	snap, err := m.store.Load(ctx, session.SessionID)
	if err != nil {
		if err == models.ErrSessionNotFound {
			return nil
		}
		return err
	}

	session.mu.Lock()
	session.canvasID = snap.CanvasID
	session.script = snap.Script
	session.stage = snap.ScriptStage
	if session.stage == "" {
		session.stage = models.ScriptStageNone
	}
	// A drafting or submitting stage cannot survive a restart; the request
	// that drove it is gone.
	if session.stage == models.ScriptStageDrafting || session.stage == models.ScriptStageSubmitting {
		if session.script != nil {
			session.stage = models.ScriptStageReady
		} else {
			session.stage = models.ScriptStageNone
		}
	}
	session.presenter = snap.Presenter
	session.mu.Unlock()

	if snap.CanvasID != nil {
		jobs, err := m.canvas.ListJobsByCanvas(ctx, *snap.CanvasID)
		if err != nil {
			return err
		}
		session.registry.Replace(jobs)
		for slot, idx := range snap.ActiveIndexes {
			for i := 0; i < idx; i++ {
				if session.registry.Navigate(slot, 1) < i+1 {
					break
				}
			}
		}
	}

	if _, err := session.ledger.Refresh(ctx); err != nil {
		m.logger.Warn("Failed to refresh credits on restore",
			zap.String("session_id", session.SessionID), zap.Error(err))
	}
	m.logger.Info("Session restored from snapshot", zap.String("session_id", session.SessionID))
	return nil
}

// Persist writes the session's snapshot to Redis. Best effort: a failed
// snapshot write never fails the user-facing operation.
func (m *SessionManager) Persist(ctx context.Context, session *Session) {
	if err := m.store.Save(ctx, session.snapshot(), m.ttl); err != nil {
		m.logger.Warn("Failed to persist session snapshot",
			zap.String("session_id", session.SessionID), zap.Error(err))
	}
}

// StartCleanup sweeps idle sessions out of memory every interval until the
// context is cancelled. Snapshots stay in Redis for later restore.
func (m *SessionManager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(ctx)
			}
		}
	}()
}

func (m *SessionManager) sweep(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		if !session.expired(m.ttl) {
			continue
		}
		// Never evict a session with jobs still in flight; the poller
		// needs its registry.
		if session.registry.AnyInFlight() {
			continue
		}
		if err := m.store.Save(ctx, session.snapshot(), m.ttl); err != nil {
			m.logger.Warn("Failed to snapshot session before eviction",
				zap.String("session_id", id), zap.Error(err))
		}
		delete(m.sessions, id)
		m.logger.Info("Idle session evicted", zap.String("session_id", id))
	}
}
