package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"adstudio-server/internal/models"
)

// UploadImage stores the source image for subsequent generations.
func (h *Handler) UploadImage(c *gin.Context) {
	var req uploadImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    models.ErrCodeValidation,
			Message: "Image must be valid base64",
		})
		return
	}
	session, err := h.sessions.GetOrCreate(c.Request.Context(), sessionIDFromContext(c), userIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	img := h.images.SetImage(session, data, req.MimeType)
	c.JSON(http.StatusOK, imageResponse{
		MimeType:  img.MimeType,
		SizeBytes: len(img.Data),
		BgRemoved: img.BgRemoved,
	})
}

// RemoveBackground runs background removal on the session's source image.
func (h *Handler) RemoveBackground(c *gin.Context) {
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	img, err := h.images.RemoveBackground(c.Request.Context(), session)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, imageResponse{
		MimeType:  img.MimeType,
		SizeBytes: len(img.Data),
		BgRemoved: img.BgRemoved,
	})
}

// UseOriginalImage reverts to the pre-removal source image.
func (h *Handler) UseOriginalImage(c *gin.Context) {
	session, err := h.sessions.Get(sessionIDFromContext(c))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	img, err := h.images.UseOriginal(session)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, imageResponse{
		MimeType:  img.MimeType,
		SizeBytes: len(img.Data),
		BgRemoved: img.BgRemoved,
	})
}
