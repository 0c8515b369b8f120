package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adstudio-server/internal/models"
	"adstudio-server/internal/orchestrator"
)

// DraftScript asks the language model for a UGC script. No credits are
// consumed; the script lands in review, not in generation.
func (h *Handler) DraftScript(c *gin.Context) {
	var req draftScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	session, err := h.sessions.GetOrCreate(c.Request.Context(), sessionIDFromContext(c), userIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	script, err := h.scripts.Draft(c.Request.Context(), session, req.ProductKnowledge, req.Presenter)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	_, stage := session.Script()
	c.JSON(http.StatusOK, scriptResponse{Script: script, Stage: stage})
}

// GetScript returns the current script and gate stage.
func (h *Handler) GetScript(c *gin.Context) {
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	script, stage := h.scripts.Script(session)
	c.JSON(http.StatusOK, scriptResponse{Script: script, Stage: stage})
}

// EditScript applies reviewer edits. Local only, no model call.
func (h *Handler) EditScript(c *gin.Context) {
	var patch models.ScriptPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		handleBindError(c, err)
		return
	}
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	script, err := h.scripts.Edit(c.Request.Context(), session, patch)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	_, stage := session.Script()
	c.JSON(http.StatusOK, scriptResponse{Script: script, Stage: stage})
}

// RewriteScript discards the current draft and asks for a fresh one.
func (h *Handler) RewriteScript(c *gin.Context) {
	var req rewriteScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	script, err := h.scripts.Rewrite(c.Request.Context(), session, req.ProductKnowledge)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	_, stage := session.Script()
	c.JSON(http.StatusOK, scriptResponse{Script: script, Stage: stage})
}

// ApproveScript freezes the edited script and submits it as a UGC
// generation. This is where pricing and the credit debit happen.
func (h *Handler) ApproveScript(c *gin.Context) {
	var req approveScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	job, err := h.scripts.Approve(c.Request.Context(), session, models.SlotID(req.SlotIndex), orchestrator.SubmitParams{
		Hook:     req.Hook,
		Captions: req.Captions,
		CTA:      req.CTA,
	})
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusAccepted, job)
}
