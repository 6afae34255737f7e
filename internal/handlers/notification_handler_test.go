package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"notification-service/internal/models"
	"notification-service/internal/repository"
	"notification-service/internal/services"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// ==================== TEST FAKES ====================

type fakeNotificationRepo struct {
	notifications map[string]*models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[string]*models.Notification)}
}

func (f *fakeNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	f.notifications[notification.ID] = notification
	return nil
}

func (f *fakeNotificationRepo) ListForUser(_ context.Context, userID string, filter models.NotificationListFilter) ([]*models.Notification, error) {
	result := make([]*models.Notification, 0)
	for _, n := range f.notifications {
		if n.RecipientID != userID {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		if filter.Kind != nil && n.Kind != *filter.Kind {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (f *fakeNotificationRepo) UnreadCount(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range f.notifications {
		if n.RecipientID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id, userID string) (*models.Notification, error) {
	n, ok := f.notifications[id]
	if !ok || n.RecipientID != userID {
		return nil, repository.ErrNotFound
	}
	n.IsRead = true
	return n, nil
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var updated int64
	for _, n := range f.notifications {
		if n.RecipientID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeNotificationRepo) Delete(_ context.Context, id, userID string) error {
	n, ok := f.notifications[id]
	if !ok || n.RecipientID != userID {
		return repository.ErrNotFound
	}
	delete(f.notifications, id)
	return nil
}

func (f *fakeNotificationRepo) DeleteReadBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakePushTokenRepo struct {
	tokens map[string]string
}

func (f *fakePushTokenRepo) GetToken(_ context.Context, userID string) (*string, error) {
	if token, ok := f.tokens[userID]; ok {
		return &token, nil
	}
	return nil, nil
}

func (f *fakePushTokenRepo) SetToken(_ context.Context, userID, token string) error {
	f.tokens[userID] = token
	return nil
}

func (f *fakePushTokenRepo) ClearToken(_ context.Context, userID string) error {
	delete(f.tokens, userID)
	return nil
}

// asUser injects the caller id the auth middleware would have set.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func setupTestRouter(repo *fakeNotificationRepo, pushTokenRepo *fakePushTokenRepo, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	notificationService := services.NewNotificationService(repo, nil)
	handler := NewNotificationHandler(notificationService, &recordingJobRepoStub{}, pushTokenRepo)

	router := gin.New()
	group := router.Group("/notification/protected/api/v1", asUser(userID))
	group.GET("/notifications", handler.ListNotifications)
	group.GET("/notifications/unread-count", handler.UnreadCount)
	group.PATCH("/notifications/:id/read", handler.MarkRead)
	group.POST("/notifications/read-all", handler.MarkAllRead)
	group.DELETE("/notifications/:id", handler.DeleteNotification)
	group.POST("/push-token", handler.RegisterPushToken)
	return router
}

type recordingJobRepoStub struct{}

func (r *recordingJobRepoStub) Enqueue(_ context.Context, _ string, _ any) (string, error) {
	return "", nil
}
func (r *recordingJobRepoStub) ClaimNext(_ context.Context) (*models.DeliveryJob, error) {
	return nil, nil
}
func (r *recordingJobRepoStub) MarkCompleted(_ context.Context, _ string) error { return nil }
func (r *recordingJobRepoStub) MarkFailed(_ context.Context, _ string, _ string) error {
	return nil
}
func (r *recordingJobRepoStub) Reschedule(_ context.Context, _ string, _ string, _ time.Time) error {
	return nil
}
func (r *recordingJobRepoStub) ReclaimStale(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}
func (r *recordingJobRepoStub) GetByID(_ context.Context, _ string) (*models.DeliveryJob, error) {
	return nil, nil
}
func (r *recordingJobRepoStub) CountByStatus(_ context.Context) (map[models.JobStatus]int, error) {
	return map[models.JobStatus]int{models.JobStatusPending: 2}, nil
}

// ==================== HANDLER TESTS ====================

func TestListNotifications_ReturnsOwnOnly(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.notifications["n1"] = &models.Notification{ID: "n1", RecipientID: "user-1", Kind: models.KindComment, Message: "m1"}
	repo.notifications["n2"] = &models.Notification{ID: "n2", RecipientID: "user-2", Kind: models.KindComment, Message: "m2"}
	router := setupTestRouter(repo, &fakePushTokenRepo{tokens: map[string]string{}}, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/notification/protected/api/v1/notifications", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Success bool                   `json:"success"`
		Data    []*models.Notification `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Len(t, response.Data, 1)
	assert.Equal(t, "n1", response.Data[0].ID)
}

func TestUnreadCount(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.notifications["n1"] = &models.Notification{ID: "n1", RecipientID: "user-1"}
	repo.notifications["n2"] = &models.Notification{ID: "n2", RecipientID: "user-1", IsRead: true}
	router := setupTestRouter(repo, &fakePushTokenRepo{tokens: map[string]string{}}, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/notification/protected/api/v1/notifications/unread-count", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unread_count":1`)
}

func TestMarkRead_NotFoundForOtherOwner(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.notifications["n1"] = &models.Notification{ID: "n1", RecipientID: "user-2"}
	router := setupTestRouter(repo, &fakePushTokenRepo{tokens: map[string]string{}}, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/notification/protected/api/v1/notifications/n1/read", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
	assert.False(t, repo.notifications["n1"].IsRead)
}

func TestMarkRead_Success(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.notifications["n1"] = &models.Notification{ID: "n1", RecipientID: "user-1"}
	router := setupTestRouter(repo, &fakePushTokenRepo{tokens: map[string]string{}}, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/notification/protected/api/v1/notifications/n1/read", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, repo.notifications["n1"].IsRead)
}

func TestDeleteNotification(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.notifications["n1"] = &models.Notification{ID: "n1", RecipientID: "user-1"}
	router := setupTestRouter(repo, &fakePushTokenRepo{tokens: map[string]string{}}, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/notification/protected/api/v1/notifications/n1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, repo.notifications, "n1")

	// Deleting again is a 404, not an error.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/notification/protected/api/v1/notifications/n1", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterPushToken(t *testing.T) {
	pushTokenRepo := &fakePushTokenRepo{tokens: map[string]string{}}
	router := setupTestRouter(newFakeNotificationRepo(), pushTokenRepo, "user-1")

	body, _ := json.Marshal(gin.H{"token": "device-token-abcdef"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/notification/protected/api/v1/push-token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "device-token-abcdef", pushTokenRepo.tokens["user-1"])
}

func TestRegisterPushToken_MissingToken(t *testing.T) {
	router := setupTestRouter(newFakeNotificationRepo(), &fakePushTokenRepo{tokens: map[string]string{}}, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/notification/protected/api/v1/push-token", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
