package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"notification-service/internal/models"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRepository reads the sessions written by the auth service. The
// pipeline only consults them to admit API calls and realtime handshakes.
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (*models.UserSession, error)
	GetUserSessions(ctx context.Context, userID string) ([]*models.UserSession, error)
}

type sessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *redis.Client) SessionRepository {
	return &sessionRepository{client: client}
}

func (r *sessionRepository) GetSession(ctx context.Context, sessionID string) (*models.UserSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	sessionData, err := r.client.Get(ctx, r.getSessionKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(sessionData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("session expired")
	}

	return &session, nil
}

func (r *sessionRepository) GetUserSessions(ctx context.Context, userID string) ([]*models.UserSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	sessionIDs, err := r.client.SMembers(ctx, r.getUserSessionsKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return []*models.UserSession{}, nil
		}
		return nil, fmt.Errorf("failed to get user session IDs: %w", err)
	}

	sessions := make([]*models.UserSession, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		session, err := r.GetSession(ctx, sessionID)
		if err != nil {
			// Session might be expired, skip it
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (r *sessionRepository) getSessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (r *sessionRepository) getUserSessionsKey(userID string) string {
	return fmt.Sprintf("user_sessions:%s", userID)
}
