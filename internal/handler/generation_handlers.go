package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/orchestrator"
)

// CreateCanvas creates the canvas explicitly, ahead of the first generation.
func (h *Handler) CreateCanvas(c *gin.Context) {
	var req createCanvasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	session, err := h.sessions.GetOrCreate(c.Request.Context(), sessionIDFromContext(c), userIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	canvas, err := h.gateway.CreateCanvas(c.Request.Context(), session, orchestrator.SubmitParams{
		ProductKnowledge: req.ProductKnowledge,
		Hook:             req.Hook,
		Captions:         req.Captions,
		CTA:              req.CTA,
	})
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusCreated, canvas)
}

// SubmitGeneration runs the submission pipeline for one slot.
func (h *Handler) SubmitGeneration(c *gin.Context) {
	var req submitGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	session, err := h.sessions.GetOrCreate(c.Request.Context(), sessionIDFromContext(c), userIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	job, err := h.gateway.Submit(c.Request.Context(), session, orchestrator.SubmitParams{
		SlotIndex:        models.SlotID(req.SlotIndex),
		Prompt:           req.Prompt,
		DurationSeconds:  req.DurationSeconds,
		Quality:          models.QualityTier(req.Quality),
		ProductKnowledge: req.ProductKnowledge,
		Hook:             req.Hook,
		Captions:         req.Captions,
		CTA:              req.CTA,
	})
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// ListCanvasJobs returns the persisted jobs of a canvas, newest first.
func (h *Handler) ListCanvasJobs(c *gin.Context) {
	canvasID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    models.ErrCodeValidation,
			Message: "Invalid canvas id",
		})
		return
	}
	jobs, err := h.gateway.ListJobs(c.Request.Context(), canvasID)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ExtendJob lengthens a completed job by one segment.
func (h *Handler) ExtendJob(c *gin.Context) {
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	job, err := h.gateway.Extend(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// ExtendActiveVersion extends the version a slot currently displays,
// without the client having to resolve the job id first.
func (h *Handler) ExtendActiveVersion(c *gin.Context) {
	slotIndex, err := strconv.ParseInt(c.Param("index"), 10, 32)
	if err != nil {
		handleBindError(c, err)
		return
	}
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	job, err := h.gateway.ExtendActive(c.Request.Context(), session, models.SlotID(slotIndex))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// Navigate moves a slot's active version pointer and returns the new view.
func (h *Handler) Navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	slot := models.SlotID(req.SlotIndex)
	idx := session.Registry().Navigate(slot, req.Direction)
	resp := navigateResponse{
		SlotIndex:    req.SlotIndex,
		ActiveIndex:  idx,
		VersionCount: session.Registry().VersionCount(slot),
	}
	if job, _, err := session.Registry().Active(slot); err == nil {
		resp.Active = job
	}
	c.JSON(http.StatusOK, resp)
}

// CanvasState returns the whole board for the session: every slot's version
// list, readiness flags and the current credit view.
func (h *Handler) CanvasState(c *gin.Context) {
	session, err := h.sessions.GetOrCreate(c.Request.Context(), sessionIDFromContext(c), userIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	resp := canvasStateResponse{
		AnyComplete: session.Registry().AnyComplete(),
		AnyInFlight: session.Registry().AnyInFlight(),
		Balance:     session.Ledger().Balance(),
	}
	if id := session.CanvasID(); id != nil {
		resp.CanvasID = id.String()
	}
	for slot, versions := range session.Registry().Snapshot() {
		sv := slotVersionsResponse{
			SlotIndex: int32(slot),
			Versions:  versions,
		}
		if _, idx, err := session.Registry().Active(slot); err == nil {
			sv.ActiveIndex = idx
		}
		resp.Slots = append(resp.Slots, sv)
	}
	if resp.Slots == nil {
		resp.Slots = []slotVersionsResponse{}
	}
	c.JSON(http.StatusOK, resp)
}

// Usage returns the authoritative credit balance, refreshing the session's
// optimistic ledger as a side effect.
func (h *Handler) Usage(c *gin.Context) {
	session, err := h.sessions.GetOrCreate(c.Request.Context(), sessionIDFromContext(c), userIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	balance, err := session.Ledger().Refresh(c.Request.Context())
	if err != nil {
		h.logger.Warn("Credit refresh failed, serving local view",
			zap.String("user_id", session.UserID), zap.Error(err))
		balance = session.Ledger().Balance()
	}
	c.JSON(http.StatusOK, balance)
}
