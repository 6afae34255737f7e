package handlers

import (
	"context"
	"fmt"
	"net/http"
	"notification-service/internal/repository"
	"notification-service/internal/services"
	"notification-service/utils"
	"strings"

	"github.com/gin-gonic/gin"
)

type Middleware struct {
	jwtService  *services.JWTService
	sessionRepo repository.SessionRepository
}

func NewMiddleware(jwtService *services.JWTService, sessionRepo repository.SessionRepository) *Middleware {
	return &Middleware{
		jwtService:  jwtService,
		sessionRepo: sessionRepo,
	}
}

// RequireAuth verifies the bearer token and an active session, then stores
// the caller's user id on the context.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.CreateErrorResponse("MISSING_TOKEN", "authorization header required"))
			return
		}

		tokenString := authHeader
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = authHeader[7:]
		}

		userID, err := m.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.CreateErrorResponse("INVALID_TOKEN", "token validation failed"))
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// Authenticate validates a bearer credential and returns the user it
// belongs to. Used by both the REST middleware and the websocket handshake.
func (m *Middleware) Authenticate(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("token cannot be empty")
	}

	claims, err := m.jwtService.VerifyToken(tokenString)
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}

	sessions, err := m.sessionRepo.GetUserSessions(ctx, claims.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to check user session: %w", err)
	}

	for _, session := range sessions {
		if session.TokenHash == tokenString && session.IsActive {
			return claims.UserID, nil
		}
	}

	return "", fmt.Errorf("no active session for token")
}

// CallerID returns the authenticated user id set by RequireAuth.
func CallerID(c *gin.Context) string {
	return c.GetString("user_id")
}
