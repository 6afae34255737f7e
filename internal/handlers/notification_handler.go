package handlers

import (
	"errors"
	"log"
	"net/http"
	"notification-service/internal/models"
	"notification-service/internal/repository"
	"notification-service/internal/services"
	"notification-service/utils"
	"strconv"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	jobRepo             repository.JobRepository
	pushTokenRepo       repository.PushTokenRepository
}

func NewNotificationHandler(
	notificationService *services.NotificationService,
	jobRepo repository.JobRepository,
	pushTokenRepo repository.PushTokenRepository,
) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		jobRepo:             jobRepo,
		pushTokenRepo:       pushTokenRepo,
	}
}

// RegisterRoutes registers all routes for the notification handler
func (h *NotificationHandler) RegisterRoutes(router *gin.Engine, middleware *Middleware) {
	group := router.Group("/notification/protected/api/v1", middleware.RequireAuth())
	group.GET("/notifications", h.ListNotifications)
	group.GET("/notifications/unread-count", h.UnreadCount)
	group.PATCH("/notifications/:id/read", h.MarkRead)
	group.POST("/notifications/read-all", h.MarkAllRead)
	group.DELETE("/notifications/:id", h.DeleteNotification)
	group.POST("/push-token", h.RegisterPushToken)

	admin := router.Group("/notification/internal/api/v1", middleware.RequireAuth())
	admin.GET("/jobs/stats", h.JobStats)
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	filter := models.NotificationListFilter{
		UnreadOnly: c.Query("unread_only") == "true",
		Page:       parseIntQuery(c, "page", 1),
		Limit:      parseIntQuery(c, "limit", 20),
	}
	if kind := c.Query("kind"); kind != "" {
		notificationKind := models.NotificationKind(kind)
		filter.Kind = &notificationKind
	}

	notifications, err := h.notificationService.ListForUser(c.Request.Context(), CallerID(c), filter)
	if err != nil {
		log.Println("internal error:", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("INTERNAL_ERROR", "Internal server error"))
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(notifications))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(c.Request.Context(), CallerID(c))
	if err != nil {
		log.Println("internal error:", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("INTERNAL_ERROR", "Internal server error"))
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"unread_count": count}))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notification, err := h.notificationService.MarkRead(c.Request.Context(), c.Param("id"), CallerID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.CreateErrorResponse("NOT_FOUND", "Notification not found"))
			return
		}
		log.Println("internal error:", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("INTERNAL_ERROR", "Internal server error"))
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(notification))
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), CallerID(c))
	if err != nil {
		log.Println("internal error:", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("INTERNAL_ERROR", "Internal server error"))
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"updated": updated}))
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	err := h.notificationService.Delete(c.Request.Context(), c.Param("id"), CallerID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.CreateErrorResponse("NOT_FOUND", "Notification not found"))
			return
		}
		log.Println("internal error:", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("INTERNAL_ERROR", "Internal server error"))
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"deleted": true}))
}

type RegisterPushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// RegisterPushToken stores the device token issued by the push provider for
// the calling user.
func (h *NotificationHandler) RegisterPushToken(c *gin.Context) {
	var request RegisterPushTokenRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST", "token is required"))
		return
	}

	if err := h.pushTokenRepo.SetToken(c.Request.Context(), CallerID(c), request.Token); err != nil {
		log.Println("internal error:", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("INTERNAL_ERROR", "Internal server error"))
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"registered": true}))
}

// JobStats exposes queue depth per status for operator inspection. Failed
// jobs stay visible here; they are never silently dropped.
func (h *NotificationHandler) JobStats(c *gin.Context) {
	counts, err := h.jobRepo.CountByStatus(c.Request.Context())
	if err != nil {
		log.Println("internal error:", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("INTERNAL_ERROR", "Internal server error"))
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(counts))
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	if value := c.Query(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
