package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
)

const (
	contextUserIDKey    = "userID"
	contextSessionIDKey = "sessionID"
	sessionHeader       = "X-Session-ID"
)

// GinZapLogger logs every request with zap, skipping the noise endpoints.
func GinZapLogger(logger *zap.Logger) gin.HandlerFunc {
	skip := map[string]struct{}{
		"/health":  {},
		"/metrics": {},
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		if _, ok := skip[path]; ok {
			return
		}
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// AuthMiddleware verifies the bearer token issued by the account service and
// stores the user id and session id on the context. Websocket upgrades may
// carry the token in the query string instead of a header.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeUnauthorized,
				Message: "Authorization token is missing",
			})
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, models.ErrTokenInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			log.Debug("Token validation failed", zap.Error(err))
			code := models.ErrCodeTokenInvalid
			if err != nil && strings.Contains(err.Error(), "expired") {
				code = models.ErrCodeTokenExpired
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    code,
				Message: "Invalid or expired token",
			})
			return
		}

		userID, _ := claims["sub"].(string)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeTokenInvalid,
				Message: "Token carries no subject",
			})
			return
		}

		sessionID := c.GetHeader(sessionHeader)
		if sessionID == "" {
			sessionID = c.Query("sessionId")
		}
		if sessionID == "" {
			// One implicit session per user when the client does not manage
			// session ids itself.
			sessionID = userID
		}

		c.Set(contextUserIDKey, userID)
		c.Set(contextSessionIDKey, sessionID)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}

func sessionIDFromContext(c *gin.Context) string {
	return c.GetString(contextSessionIDKey)
}
