package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adstudio-server/internal/orchestrator"
	"adstudio-server/internal/ws"
)

// Handler bundles the HTTP surface of the studio server.
type Handler struct {
	sessions  *orchestrator.SessionManager
	gateway   *orchestrator.Gateway
	scripts   *orchestrator.ScriptGate
	images    *orchestrator.ImageService
	wsManager *ws.Manager
	logger    *zap.Logger
}

// NewHandler creates the Handler.
func NewHandler(
	sessions *orchestrator.SessionManager,
	gateway *orchestrator.Gateway,
	scripts *orchestrator.ScriptGate,
	images *orchestrator.ImageService,
	wsManager *ws.Manager,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:  sessions,
		gateway:   gateway,
		scripts:   scripts,
		images:    images,
		wsManager: wsManager,
		logger:    logger.Named("HTTPHandler"),
	}
}

// RegisterRoutes mounts the API. Generation-triggering routes additionally
// pass through the rate limiter.
func (h *Handler) RegisterRoutes(router *gin.Engine, auth gin.HandlerFunc, rateLimit gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(auth)
	{
		api.POST("/canvases", h.CreateCanvas)
		api.GET("/canvases/:id/jobs", h.ListCanvasJobs)
		api.GET("/canvas", h.CanvasState)
		api.POST("/navigate", h.Navigate)
		api.GET("/usage", h.Usage)

		api.POST("/images", h.UploadImage)
		api.POST("/images/remove-background", h.RemoveBackground)
		api.POST("/images/use-original", h.UseOriginalImage)

		script := api.Group("/script")
		{
			script.GET("", h.GetScript)
			script.POST("/draft", h.DraftScript)
			script.PATCH("", h.EditScript)
			script.POST("/rewrite", h.RewriteScript)
		}

		limited := api.Group("")
		limited.Use(rateLimit)
		{
			limited.POST("/generations", h.SubmitGeneration)
			limited.POST("/jobs/:id/extend", h.ExtendJob)
			limited.POST("/slots/:index/extend", h.ExtendActiveVersion)
			limited.POST("/script/approve", h.ApproveScript)
		}
	}

	router.GET("/ws", auth, h.ServeWS)
}
