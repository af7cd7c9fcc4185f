package api

import (
	"errors"
	"net/http"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/outbound"
	"whatsapp-inbox/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BroadcastHandler struct {
	DB         *gorm.DB
	Dispatcher *outbound.Dispatcher
}

func NewBroadcastHandler(db *gorm.DB, dispatcher *outbound.Dispatcher) *BroadcastHandler {
	return &BroadcastHandler{DB: db, Dispatcher: dispatcher}
}

func (h *BroadcastHandler) GetBroadcasts(c *gin.Context) {
	broadcasts := []models.Broadcast{}
	err := h.DB.WithContext(c.Request.Context()).
		Where("business_profile_id = ?", currentBusiness(c).ID).
		Order("id DESC").Find(&broadcasts).Error
	if err != nil {
		internalError(c, "Failed to load broadcasts", err)
		return
	}
	c.JSON(http.StatusOK, broadcasts)
}

type BroadcastRequest struct {
	TemplateName string   `json:"template_name" binding:"required"`
	Language     string   `json:"language"`
	Contacts     []string `json:"contacts"` // phone numbers; empty means every opted-in contact
	Tag          string   `json:"tag"`
}

func (h *BroadcastHandler) SendBroadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.Dispatcher.Broadcast(c.Request.Context(), currentBusiness(c), outbound.BroadcastRequest{
		TemplateName: req.TemplateName,
		Language:     req.Language,
		Recipients:   req.Contacts,
		Tag:          req.Tag,
	})
	if errors.Is(err, outbound.ErrNoRecipients) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		if b == nil {
			internalError(c, "Failed to send broadcast", err)
			return
		}
		logger.Warn("Broadcast finished with error", zap.Uint("broadcast_id", b.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, b)
}
