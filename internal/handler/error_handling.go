package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/provider"
)

// handleServiceError maps service errors onto HTTP status codes and the
// standard error body. Credit-exhausted failures use 429 (rate-limit
// class, distinguishable from generic failures) and carry the
// authoritative remaining so the client can reconcile its local ledger.
func handleServiceError(c *gin.Context, err error, logger *zap.Logger) {
	var insufficient *models.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		remaining := insufficient.Remaining
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			Code:      models.ErrCodeInsufficientCredits,
			Message:   "Not enough credits for this generation",
			Remaining: &remaining,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrInsufficientCredits):
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			Code:    models.ErrCodeInsufficientCredits,
			Message: "Not enough credits for this generation",
		})
	case errors.Is(err, models.ErrCanvasNotFound),
		errors.Is(err, models.ErrJobNotFound),
		errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrSlotEmpty),
		errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Code:    models.ErrCodeNotFound,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrJobNotExtendable),
		errors.Is(err, models.ErrScriptDrafting),
		errors.Is(err, models.ErrScriptNotEditable):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Code:    models.ErrCodeConflict,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrNoScript),
		errors.Is(err, models.ErrBadRequest),
		errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    models.ErrCodeBadRequest,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Code:    models.ErrCodeTokenExpired,
			Message: "Token has expired",
		})
	case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Code:    models.ErrCodeUnauthorized,
			Message: "Unauthorized",
		})
	case errors.Is(err, models.ErrProviderFailure),
		errors.Is(err, provider.ErrVideoGenerationFailed),
		errors.Is(err, provider.ErrScriptGenerationFailed),
		errors.Is(err, provider.ErrBackgroundRemovalFailed):
		logger.Error("Provider failure", zap.Error(err))
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Code:    models.ErrCodeProviderFailure,
			Message: "Generation provider is unavailable, please retry",
		})
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    models.ErrCodeInternal,
			Message: "Internal server error",
		})
	}
}

// handleBindError reports a malformed request body.
func handleBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Code:    models.ErrCodeValidation,
		Message: err.Error(),
	})
}
