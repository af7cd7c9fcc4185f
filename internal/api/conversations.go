package api

import (
	"errors"
	"net/http"
	"strings"

	"whatsapp-inbox/internal/inbox"
	"whatsapp-inbox/internal/models"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	Inbox *inbox.Service
}

func NewConversationHandler(inboxService *inbox.Service) *ConversationHandler {
	return &ConversationHandler{Inbox: inboxService}
}

func (h *ConversationHandler) ListConversations(c *gin.Context) {
	filter := inbox.ConversationFilter{
		Status: models.ConversationStatus(strings.ToUpper(c.Query("status"))),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	conversations, err := h.Inbox.ListConversations(c.Request.Context(), currentBusiness(c).ID, filter)
	if err != nil {
		internalError(c, "Failed to load conversations", err)
		return
	}
	c.JSON(http.StatusOK, conversations)
}

func (h *ConversationHandler) GetConversation(c *gin.Context) {
	id, ok := uintParam(c, "conversationId")
	if !ok {
		return
	}
	conv, err := h.Inbox.GetConversation(c.Request.Context(), currentBusiness(c).ID, id)
	if errors.Is(err, inbox.ErrConversationMissing) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		internalError(c, "Failed to load conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) GetMessages(c *gin.Context) {
	id, ok := uintParam(c, "conversationId")
	if !ok {
		return
	}
	messages, err := h.Inbox.ListMessages(c.Request.Context(), currentBusiness(c).ID, id)
	if errors.Is(err, inbox.ErrConversationMissing) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		internalError(c, "Failed to load messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type UpdateConversationRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus closes, archives or reopens a conversation.
func (h *ConversationHandler) UpdateStatus(c *gin.Context) {
	id, ok := uintParam(c, "conversationId")
	if !ok {
		return
	}
	var req UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.ConversationStatus(strings.ToUpper(req.Status))
	conv, err := h.Inbox.SetConversationStatus(c.Request.Context(), currentBusiness(c).ID, id, status)
	switch {
	case errors.Is(err, inbox.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
	case errors.Is(err, inbox.ErrConversationMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	case errors.Is(err, inbox.ErrConversationOpen):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		internalError(c, "Failed to update conversation", err)
	default:
		c.JSON(http.StatusOK, conv)
	}
}
