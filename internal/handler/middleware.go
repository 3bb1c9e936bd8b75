package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/influenza/backend/internal/service"
)

const authUserKey = "auth_user"

// AuthMiddleware gatekeeps protected routes. It is purely cryptographic:
// no store lookup happens here. Expired tokens get 403 so clients know to
// refresh; anything else unauthenticated gets 401.
func AuthMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Access token missing"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Access token missing"})
			c.Abort()
			return
		}

		userID, err := tokens.VerifyAccessToken(token)
		if err != nil {
			if errors.Is(err, service.ErrTokenExpired) {
				c.JSON(http.StatusForbidden, gin.H{"message": "Access token expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid access token"})
			}
			c.Abort()
			return
		}

		c.Set(authUserKey, userID)
		c.Next()
	}
}

// GetAuthUserID returns the authenticated user id set by AuthMiddleware.
func GetAuthUserID(c *gin.Context) (uuid.UUID, bool) {
	if value, ok := c.Get(authUserKey); ok {
		if id, ok := value.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
