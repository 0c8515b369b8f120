package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/orchestrator"
	"adstudio-server/internal/provider"
	"adstudio-server/internal/ws"
)

const testJWTSecret = "handler-test-secret"

// memCanvasRepo is an in-memory CanvasRepository for route tests.
type memCanvasRepo struct {
	mu       sync.Mutex
	canvases map[uuid.UUID]*models.Canvas
	jobs     map[string]*models.GenerationJob
}

func newMemCanvasRepo() *memCanvasRepo {
	return &memCanvasRepo{
		canvases: make(map[uuid.UUID]*models.Canvas),
		jobs:     make(map[string]*models.GenerationJob),
	}
}

func (r *memCanvasRepo) CreateCanvas(_ context.Context, canvas *models.Canvas) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canvases[canvas.ID] = canvas
	return nil
}

func (r *memCanvasRepo) GetCanvas(_ context.Context, id uuid.UUID) (*models.Canvas, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	canvas, ok := r.canvases[id]
	if !ok {
		return nil, models.ErrCanvasNotFound
	}
	return canvas, nil
}

func (r *memCanvasRepo) SaveJob(_ context.Context, job *models.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *memCanvasRepo) GetJob(_ context.Context, jobID string) (*models.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return job, nil
}

func (r *memCanvasRepo) ListJobsByCanvas(_ context.Context, canvasID uuid.UUID) ([]*models.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GenerationJob
	for _, job := range r.jobs {
		if job.CanvasID == canvasID {
			out = append(out, job)
		}
	}
	return out, nil
}

// stubCreditRepo backs both the authoritative repository and the session
// manager's balance source.
type stubCreditRepo struct {
	mu      sync.Mutex
	balance models.CreditBalance
}

func newStubCreditRepo(used, planLimit, purchased int) *stubCreditRepo {
	b := models.CreditBalance{Used: used, PlanLimit: planLimit, Purchased: purchased, Status: "active"}
	b.Derive()
	return &stubCreditRepo{balance: b}
}

func (r *stubCreditRepo) GetBalance(_ context.Context, _ string) (models.CreditBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance, nil
}

func (r *stubCreditRepo) TryDebit(_ context.Context, _ string, amount int) (models.CreditBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balance.Remaining < amount {
		return models.CreditBalance{}, &models.InsufficientCreditsError{
			Required:  amount,
			Remaining: r.balance.Remaining,
		}
	}
	r.balance.Used += amount
	r.balance.Derive()
	return r.balance, nil
}

func (r *stubCreditRepo) Refund(_ context.Context, _ string, amount int) (models.CreditBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balance.Used -= amount
	if r.balance.Used < 0 {
		r.balance.Used = 0
	}
	r.balance.Derive()
	return r.balance, nil
}

func (r *stubCreditRepo) Upsert(_ context.Context, _ string, balance models.CreditBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balance = balance
	r.balance.Derive()
	return nil
}

// stubVideo accepts every submission and reports jobs as generating.
type stubVideo struct {
	submitted int
}

func (v *stubVideo) Submit(_ context.Context, _ provider.SubmitRequest) (string, error) {
	v.submitted++
	return fmt.Sprintf("job-%d", v.submitted), nil
}

func (v *stubVideo) Poll(_ context.Context, jobID string) (provider.JobState, error) {
	return provider.JobState{JobID: jobID, Status: models.JobStatusGenerating, ProgressPct: 10}, nil
}

func (v *stubVideo) Extend(_ context.Context, _ string) (provider.ExtendResult, error) {
	return provider.ExtendResult{ExtensionStep: 1, ExtensionTotal: 1}, nil
}

// nullSessionStore keeps no snapshots; every session starts fresh.
type nullSessionStore struct{}

func (nullSessionStore) Save(_ context.Context, _ *models.SessionSnapshot, _ time.Duration) error {
	return nil
}

func (nullSessionStore) Load(_ context.Context, _ string) (*models.SessionSnapshot, error) {
	return nil, models.ErrSessionNotFound
}

func (nullSessionStore) Delete(_ context.Context, _ string) error { return nil }

func newTestRouter(t *testing.T, credits *stubCreditRepo) (*gin.Engine, *memCanvasRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	canvases := newMemCanvasRepo()
	video := &stubVideo{}
	sessions := orchestrator.NewSessionManager(nullSessionStore{}, canvases, credits, time.Hour, logger)
	poller := orchestrator.NewPoller(video, canvases, sessions, nil, time.Hour, logger)
	t.Cleanup(poller.Stop)
	gateway := orchestrator.NewGateway(canvases, credits, video, sessions, poller, logger)
	scripts := orchestrator.NewScriptGate(nil, gateway, sessions, logger)
	images := orchestrator.NewImageService(nil, sessions, logger)

	h := NewHandler(sessions, gateway, scripts, images, ws.NewManager(logger), logger)
	router := gin.New()
	passThrough := func(c *gin.Context) { c.Next() }
	h.RegisterRoutes(router, AuthMiddleware(testJWTSecret, logger), passThrough)
	return router, canvases
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitGenerationAccepted(t *testing.T) {
	credits := newStubCreditRepo(0, 100, 0)
	router, canvases := newTestRouter(t, credits)
	token := signToken(t, "user-1")

	w := doJSON(t, router, http.MethodPost, "/api/generations", token, map[string]interface{}{
		"slotIndex":       0,
		"prompt":          "studio shot of the product on a marble counter",
		"durationSeconds": 8,
		"quality":         "standard",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var job map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.NotEmpty(t, job["id"])
	assert.Equal(t, "queued", job["status"])
	assert.Equal(t, float64(0), job["slotIndex"])
	assert.Equal(t, "veo", job["provider"])
	assert.Equal(t, float64(20), job["creditCost"])
	assert.NotEmpty(t, job["canvasId"], "submission creates the canvas lazily")

	canvases.mu.Lock()
	defer canvases.mu.Unlock()
	assert.Len(t, canvases.jobs, 1, "accepted job is persisted")
}

func TestSubmitGenerationCreditExhaustionBody(t *testing.T) {
	credits := newStubCreditRepo(20, 25, 0) // 5 remaining
	router, _ := newTestRouter(t, credits)
	token := signToken(t, "user-1")

	w := doJSON(t, router, http.MethodPost, "/api/generations", token, map[string]interface{}{
		"slotIndex": 0,
		"prompt":    "a clip the user can no longer afford",
		"quality":   "standard",
	})

	// Credit exhaustion is a rate-limit-class failure the client branches
	// on, not a generic error.
	require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())

	var resp struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Remaining *int   `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeInsufficientCredits, resp.Code)
	require.NotNil(t, resp.Remaining, "body carries the authoritative remaining")
	assert.Equal(t, 5, *resp.Remaining)
}

func TestSubmitGenerationRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t, newStubCreditRepo(0, 100, 0))

	w := doJSON(t, router, http.MethodPost, "/api/generations", "", map[string]interface{}{
		"slotIndex": 0,
		"prompt":    "no token attached",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeUnauthorized, resp.Code)
}

func TestUsageFieldNames(t *testing.T) {
	credits := newStubCreditRepo(30, 100, 50)
	router, _ := newTestRouter(t, credits)
	token := signToken(t, "user-1")

	w := doJSON(t, router, http.MethodGet, "/api/usage", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, key := range []string{"used", "planLimit", "purchased", "totalAvailable", "remaining", "status"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, float64(120), body["remaining"])
}
