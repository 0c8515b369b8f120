package handler

import "adstudio-server/internal/models"

// createCanvasRequest creates a canvas ahead of the first submission.
type createCanvasRequest struct {
	ProductKnowledge string `json:"productKnowledge"`
	Hook             string `json:"hook"`
	Captions         string `json:"captions"`
	CTA              string `json:"cta"`
}

// submitGenerationRequest is the body of POST /api/generations.
type submitGenerationRequest struct {
	SlotIndex       int32  `json:"slotIndex"`
	Prompt          string `json:"prompt" binding:"required"`
	DurationSeconds int    `json:"durationSeconds"`
	Quality         string `json:"quality"`

	ProductKnowledge string `json:"productKnowledge"`
	Hook             string `json:"hook"`
	Captions         string `json:"captions"`
	CTA              string `json:"cta"`
}

// navigateRequest moves a slot's active version pointer.
type navigateRequest struct {
	SlotIndex int32 `json:"slotIndex"`
	Direction int   `json:"direction" binding:"required"`
}

type navigateResponse struct {
	SlotIndex    int32                 `json:"slotIndex"`
	ActiveIndex  int                   `json:"activeIndex"`
	VersionCount int                   `json:"versionCount"`
	Active       *models.GenerationJob `json:"active,omitempty"`
}

// slotVersionsResponse is one slot's version list, newest first.
type slotVersionsResponse struct {
	SlotIndex   int32                   `json:"slotIndex"`
	ActiveIndex int                     `json:"activeIndex"`
	Versions    []*models.GenerationJob `json:"versions"`
}

// canvasStateResponse is the full board state for a session.
type canvasStateResponse struct {
	CanvasID    string                 `json:"canvasId,omitempty"`
	Slots       []slotVersionsResponse `json:"slots"`
	AnyComplete bool                   `json:"anyComplete"`
	AnyInFlight bool                   `json:"anyInFlight"`
	Balance     models.CreditBalance   `json:"balance"`
}

// draftScriptRequest starts UGC script drafting.
type draftScriptRequest struct {
	ProductKnowledge string                    `json:"productKnowledge" binding:"required"`
	Presenter        *models.PresenterSettings `json:"presenter"`
}

// rewriteScriptRequest re-drafts the current script.
type rewriteScriptRequest struct {
	ProductKnowledge string `json:"productKnowledge" binding:"required"`
}

// scriptResponse wraps the script with its gate stage.
type scriptResponse struct {
	Script *models.UGCScript  `json:"script,omitempty"`
	Stage  models.ScriptStage `json:"stage"`
}

// approveScriptRequest submits the reviewed script for generation.
type approveScriptRequest struct {
	SlotIndex int32  `json:"slotIndex"`
	Hook      string `json:"hook"`
	Captions  string `json:"captions"`
	CTA       string `json:"cta"`
}

// uploadImageRequest carries the base64-encoded source image.
type uploadImageRequest struct {
	Image    string `json:"image" binding:"required"`
	MimeType string `json:"mimeType" binding:"required"`
}

// imageResponse reports the current source image state. Bytes stay server
// side; the client only needs the flags.
type imageResponse struct {
	MimeType  string `json:"mimeType"`
	SizeBytes int    `json:"sizeBytes"`
	BgRemoved bool   `json:"bgRemoved"`
}
