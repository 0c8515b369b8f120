package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/provider"
)

// ScriptGate is the two-stage review gate in front of UGC generation: a
// language model drafts the script, the reviewer edits it freely, and only
// an explicit approval turns the edited script into a priced submission.
// Drafting and editing consume no credits.
type ScriptGate struct {
	writer   provider.ScriptWriter
	gateway  *Gateway
	sessions *SessionManager
	logger   *zap.Logger
}

// NewScriptGate creates a ScriptGate.
func NewScriptGate(writer provider.ScriptWriter, gateway *Gateway, sessions *SessionManager, logger *zap.Logger) *ScriptGate {
	return &ScriptGate{
		writer:   writer,
		gateway:  gateway,
		sessions: sessions,
		logger:   logger.Named("ScriptGate"),
	}
}

// Draft asks the model for a script. A draft already in flight is rejected
// rather than queued; the reviewer sees one draft at a time.
func (g *ScriptGate) Draft(ctx context.Context, session *Session, productKnowledge string, presenter *models.PresenterSettings) (*models.UGCScript, error) {
	if err := session.beginDrafting(presenter); err != nil {
		return nil, err
	}

	var p models.PresenterSettings
	if presenter != nil {
		p = *presenter
	}
	script, err := g.writer.WriteScript(ctx, productKnowledge, p)
	if err != nil {
		session.finishDrafting(nil, false)
		g.logger.Error("Script drafting failed",
			zap.String("session_id", session.SessionID), zap.Error(err))
		return nil, err
	}

	session.finishDrafting(&script, true)
	g.sessions.Persist(ctx, session)
	g.logger.Info("Script drafted",
		zap.String("session_id", session.SessionID),
		zap.Int("estimated_duration_s", script.EstimatedDuration),
	)
	cp := script
	return &cp, nil
}

// Rewrite discards the current script and drafts a fresh one with the same
// product knowledge and presenter settings.
func (g *ScriptGate) Rewrite(ctx context.Context, session *Session, productKnowledge string) (*models.UGCScript, error) {
	if script, _ := session.Script(); script == nil {
		return nil, models.ErrNoScript
	}
	return g.Draft(ctx, session, productKnowledge, session.Presenter())
}

// Edit applies reviewer edits to the drafted script. Purely local.
func (g *ScriptGate) Edit(ctx context.Context, session *Session, patch models.ScriptPatch) (*models.UGCScript, error) {
	script, err := session.editScript(patch)
	if err != nil {
		return nil, err
	}
	g.sessions.Persist(ctx, session)
	return script, nil
}

// Script returns the current script and gate stage.
func (g *ScriptGate) Script(session *Session) (*models.UGCScript, models.ScriptStage) {
	return session.Script()
}

// Approve freezes the edited script and submits it as a UGC-tier generation
// for the given slot. The duration comes from the script's estimate; the
// submission pipeline prices and debits it like any other generation.
func (g *ScriptGate) Approve(ctx context.Context, session *Session, slot models.SlotID, params SubmitParams) (*models.GenerationJob, error) {
	script, err := session.beginSubmitting()
	if err != nil {
		return nil, err
	}
	defer session.finishSubmitting()

	duration := script.EstimatedDuration
	if duration <= 0 {
		duration = BaseDurationSeconds
	}

	params.SlotIndex = slot
	params.Quality = models.QualityUGC
	params.DurationSeconds = duration
	params.Prompt = buildVideoPrompt(script)
	if params.Hook == "" {
		params.Hook = script.Overlay.Hook
	}
	if params.CTA == "" {
		params.CTA = script.Overlay.CTA
	}

	job, err := g.gateway.Submit(ctx, session, params)
	if err != nil {
		return nil, err
	}
	g.logger.Info("Script approved and submitted",
		zap.String("session_id", session.SessionID),
		zap.String("job_id", job.ID),
		zap.Int("duration_s", duration),
	)
	return job, nil
}

// buildVideoPrompt renders the edited script into the provider prompt. The
// edited fields are what gets submitted; the model's original draft carries
// no special authority once the reviewer has touched it.
func buildVideoPrompt(script *models.UGCScript) string {
	var sb strings.Builder
	sb.WriteString(script.Prompt)
	if script.Dialogue != "" {
		sb.WriteString("\n\nDialogue:\n")
		sb.WriteString(script.Dialogue)
	}
	if script.SceneSummary != "" {
		sb.WriteString("\n\nScene:\n")
		sb.WriteString(script.SceneSummary)
	}
	if script.Overlay.Hook != "" || script.Overlay.CTA != "" {
		sb.WriteString("\n\nOverlay text:")
		if script.Overlay.Hook != "" {
			sb.WriteString("\nHook: " + script.Overlay.Hook)
		}
		if script.Overlay.CTA != "" {
			sb.WriteString("\nCTA: " + script.Overlay.CTA)
		}
	}
	if len(script.ExtensionPrompts) > 0 {
		sb.WriteString("\n\nExtension segments:")
		for _, p := range script.ExtensionPrompts {
			sb.WriteString("\n")
			sb.WriteString(strings.TrimSpace(p))
		}
	}
	return sb.String()
}
