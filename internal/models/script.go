package models

// ScriptOverlay holds the on-video overlay text of a UGC script.
type ScriptOverlay struct {
	Hook string `json:"hook"`
	CTA  string `json:"cta"`
}

// UGCScript is the artifact of the script review gate: a language-model
// authored shot plan/dialogue for a simulated on-camera testimonial video.
// All textual fields are freely editable by the reviewer before approval;
// once approved the edited fields are frozen into the submitted job.
type UGCScript struct {
	Prompt            string        `json:"prompt"`
	Dialogue          string        `json:"dialogue"`
	SceneSummary      string        `json:"sceneSummary"`
	Overlay           ScriptOverlay `json:"overlay"`
	ExtensionPrompts  []string      `json:"extensionPrompts"`
	EstimatedDuration int           `json:"estimatedDuration"`
}

// PresenterSettings describe the simulated presenter for UGC drafting.
type PresenterSettings struct {
	Gender   string `json:"gender,omitempty"`
	AgeRange string `json:"ageRange,omitempty"`
	Tone     string `json:"tone,omitempty"`
	Features string `json:"features,omitempty"`
	Clothing string `json:"clothing,omitempty"`
	Setting  string `json:"setting,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// ScriptStage is the review gate pipeline stage. Modeled as a tagged state
// so illegal operations (approving with no script) are unrepresentable.
type ScriptStage string

const (
	ScriptStageNone       ScriptStage = "no_script"
	ScriptStageDrafting   ScriptStage = "drafting"
	ScriptStageReady      ScriptStage = "ready_for_review"
	ScriptStageSubmitting ScriptStage = "submitting"
)

// ScriptPatch carries reviewer edits. Nil fields stay untouched; edits never
// trigger a network call.
type ScriptPatch struct {
	Prompt           *string  `json:"prompt,omitempty"`
	Dialogue         *string  `json:"dialogue,omitempty"`
	SceneSummary     *string  `json:"sceneSummary,omitempty"`
	OverlayHook      *string  `json:"overlayHook,omitempty"`
	OverlayCTA       *string  `json:"overlayCta,omitempty"`
	ExtensionPrompts []string `json:"extensionPrompts,omitempty"`
}

// Apply copies the non-nil edits onto the script.
func (s *UGCScript) Apply(p ScriptPatch) {
	if p.Prompt != nil {
		s.Prompt = *p.Prompt
	}
	if p.Dialogue != nil {
		s.Dialogue = *p.Dialogue
	}
	if p.SceneSummary != nil {
		s.SceneSummary = *p.SceneSummary
	}
	if p.OverlayHook != nil {
		s.Overlay.Hook = *p.OverlayHook
	}
	if p.OverlayCTA != nil {
		s.Overlay.CTA = *p.OverlayCTA
	}
	if p.ExtensionPrompts != nil {
		s.ExtensionPrompts = p.ExtensionPrompts
	}
}
