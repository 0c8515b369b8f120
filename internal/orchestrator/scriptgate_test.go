package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/provider"
)

type scriptGateFixture struct {
	gatewayFixture
	writer *MockScriptWriter
	gate   *ScriptGate
}

func newScriptGateFixture(t *testing.T) *scriptGateFixture {
	t.Helper()
	base := newGatewayFixture(t)
	writer := new(MockScriptWriter)
	gate := NewScriptGate(writer, base.gateway, base.sessions, zap.NewNop())
	return &scriptGateFixture{gatewayFixture: *base, writer: writer, gate: gate}
}

func sampleScript() models.UGCScript {
	return models.UGCScript{
		Prompt:            "woman holding serum bottle, handheld phone camera",
		Dialogue:          "I was skeptical, but this actually works.",
		SceneSummary:      "Bathroom morning routine testimonial.",
		Overlay:           models.ScriptOverlay{Hook: "POV: your skin after 2 weeks", CTA: "Link in bio"},
		EstimatedDuration: 8,
	}
}

func TestDraftConsumesNoCredits(t *testing.T) {
	f := newScriptGateFixture(t)
	f.writer.On("WriteScript", mock.Anything, "face serum", mock.Anything).
		Return(sampleScript(), nil).Once()

	script, err := f.gate.Draft(context.Background(), f.session, "face serum", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, script.Prompt)

	_, stage := f.session.Script()
	assert.Equal(t, models.ScriptStageReady, stage)
	f.credits.AssertNotCalled(t, "TryDebit", mock.Anything, mock.Anything, mock.Anything)
}

func TestDraftWhileDraftingIsRejected(t *testing.T) {
	f := newScriptGateFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.writer.On("WriteScript", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(sampleScript(), nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.gate.Draft(context.Background(), f.session, "pk", nil)
		done <- err
	}()
	<-started

	_, err := f.gate.Draft(context.Background(), f.session, "pk", nil)
	assert.ErrorIs(t, err, models.ErrScriptDrafting)

	close(release)
	require.NoError(t, <-done)
}

func TestDraftFailureFallsBackToPreviousScript(t *testing.T) {
	f := newScriptGateFixture(t)
	f.writer.On("WriteScript", mock.Anything, mock.Anything, mock.Anything).
		Return(sampleScript(), nil).Once()
	_, err := f.gate.Draft(context.Background(), f.session, "pk", nil)
	require.NoError(t, err)

	f.writer.On("WriteScript", mock.Anything, mock.Anything, mock.Anything).
		Return(models.UGCScript{}, provider.ErrScriptGenerationFailed).Once()
	_, err = f.gate.Rewrite(context.Background(), f.session, "pk")
	require.Error(t, err)

	// The previous script survives and stays reviewable.
	script, stage := f.session.Script()
	require.NotNil(t, script)
	assert.Equal(t, models.ScriptStageReady, stage)
}

func TestEditRequiresScript(t *testing.T) {
	f := newScriptGateFixture(t)
	hook := "new hook"
	_, err := f.gate.Edit(context.Background(), f.session, models.ScriptPatch{OverlayHook: &hook})
	assert.ErrorIs(t, err, models.ErrNoScript)
}

func TestApproveSubmitsEditedFields(t *testing.T) {
	f := newScriptGateFixture(t)
	f.writer.On("WriteScript", mock.Anything, mock.Anything, mock.Anything).
		Return(sampleScript(), nil).Once()
	_, err := f.gate.Draft(context.Background(), f.session, "pk", nil)
	require.NoError(t, err)

	edited := "Honestly, I did not expect this."
	_, err = f.gate.Edit(context.Background(), f.session, models.ScriptPatch{Dialogue: &edited})
	require.NoError(t, err)

	f.canvases.On("CreateCanvas", mock.Anything, mock.Anything).Return(nil).Once()
	f.canvases.On("SaveJob", mock.Anything, mock.Anything).Return(nil)
	// 8s UGC clip: base 50, no segments.
	f.credits.On("TryDebit", mock.Anything, "user-1", 50).
		Return(models.CreditBalance{}, nil).Once()
	f.video.On("Submit", mock.Anything, mock.MatchedBy(func(req provider.SubmitRequest) bool {
		return strings.Contains(req.Prompt, edited) && req.Quality == models.QualityUGC
	})).Return("ugc-job", nil).Once()
	f.video.On("Poll", mock.Anything, "ugc-job").
		Return(provider.JobState{Status: models.JobStatusQueued}, nil).Maybe()

	job, err := f.gate.Approve(context.Background(), f.session, 2, SubmitParams{})
	require.NoError(t, err)

	assert.Equal(t, models.QualityUGC, job.Quality)
	assert.Equal(t, models.SlotID(2), job.SlotIndex)
	assert.Equal(t, 8, job.DurationSeconds)
	assert.Equal(t, 50, job.CreditCost)

	_, stage := f.session.Script()
	assert.Equal(t, models.ScriptStageReady, stage, "script stays reviewable after approval")
	f.credits.AssertExpectations(t)
	f.video.AssertExpectations(t)
}

func TestApproveUsesScriptDuration(t *testing.T) {
	f := newScriptGateFixture(t)
	long := sampleScript()
	long.EstimatedDuration = 22
	long.ExtensionPrompts = []string{"segment two", "segment three"}
	f.writer.On("WriteScript", mock.Anything, mock.Anything, mock.Anything).
		Return(long, nil).Once()
	_, err := f.gate.Draft(context.Background(), f.session, "pk", nil)
	require.NoError(t, err)

	f.canvases.On("CreateCanvas", mock.Anything, mock.Anything).Return(nil).Once()
	f.canvases.On("SaveJob", mock.Anything, mock.Anything).Return(nil)
	// 22s UGC: base 50 + 2 segments * 25.
	f.credits.On("TryDebit", mock.Anything, "user-1", 100).
		Return(models.CreditBalance{}, nil).Once()
	f.video.On("Submit", mock.Anything, mock.MatchedBy(func(req provider.SubmitRequest) bool {
		return req.DurationSeconds == 22 && req.Provider == models.ProviderVeoExtended
	})).Return("ugc-long", nil).Once()
	f.video.On("Poll", mock.Anything, "ugc-long").
		Return(provider.JobState{Status: models.JobStatusQueued}, nil).Maybe()

	job, err := f.gate.Approve(context.Background(), f.session, 0, SubmitParams{})
	require.NoError(t, err)
	assert.Equal(t, 22, job.TargetDurationSeconds)
	assert.Equal(t, 2, job.ExtensionTotal)
	f.credits.AssertExpectations(t)
}

func TestApproveWithoutScript(t *testing.T) {
	f := newScriptGateFixture(t)
	_, err := f.gate.Approve(context.Background(), f.session, 0, SubmitParams{})
	assert.ErrorIs(t, err, models.ErrNoScript)
	f.credits.AssertNotCalled(t, "TryDebit", mock.Anything, mock.Anything, mock.Anything)
}

func TestRewriteWithoutScript(t *testing.T) {
	f := newScriptGateFixture(t)
	_, err := f.gate.Rewrite(context.Background(), f.session, "pk")
	assert.ErrorIs(t, err, models.ErrNoScript)
}
