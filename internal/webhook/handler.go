package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/inbox"
	"whatsapp-inbox/internal/metrics"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/pkg/logger"
	waapi "whatsapp-inbox/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Responder reacts to a freshly recorded inbound text, e.g. with an auto reply.
type Responder interface {
	ProcessIncomingMessage(ctx context.Context, business *models.BusinessProfile, contact *models.Contact, content string) (*models.QuickReply, error)
}

// Notifier pushes inbox changes to connected dashboards.
type Notifier interface {
	NotifyMessage(msg models.Message)
	NotifyStatus(msg models.Message)
}

type Handler struct {
	Config    *config.Config
	Inbox     *inbox.Service
	Responder Responder
	Notifier  Notifier
}

func NewHandler(cfg *config.Config, inboxService *inbox.Service, responder Responder, notifier Notifier) *Handler {
	return &Handler{
		Config:    cfg,
		Inbox:     inboxService,
		Responder: responder,
		Notifier:  notifier,
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.Config.VerifyToken {
			logger.Info("Webhook verified successfully")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleMessage ingests a Cloud API notification. Every message and status in
// every entry is applied; only a storage failure makes the platform retry.
func (h *Handler) HandleMessage(c *gin.Context) {
	body, err := verifySignature(c.Request, h.Config.AppSecret)
	if errors.Is(err, ErrUnreadableBody) {
		logger.Warn("Error reading webhook body", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("payload", "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if err != nil {
		logger.Warn("Rejected webhook", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("payload", "unauthorized").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload waapi.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("Error decoding webhook payload", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("payload", "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if err := h.processChange(ctx, change.Value); err != nil {
				logger.Error("Failed to process webhook change",
					zap.String("entry_id", entry.ID),
					zap.String("phone_number_id", change.Value.Metadata.PhoneNumberID),
					zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
				return
			}
		}
	}

	c.Status(http.StatusOK)
}

func (h *Handler) processChange(ctx context.Context, value waapi.ChangeValue) error {
	phoneNumberID := value.Metadata.PhoneNumberID

	names := make(map[string]string, len(value.Contacts))
	for _, ct := range value.Contacts {
		names[ct.WaID] = ct.Profile.Name
	}

	for _, message := range value.Messages {
		err := h.processMessage(ctx, phoneNumberID, names[message.From], message)
		if errors.Is(err, inbox.ErrUnknownBusiness) {
			logger.Warn("Webhook for unknown business", zap.String("phone_number_id", phoneNumberID))
			metrics.WebhookEvents.WithLabelValues("message", "unknown_business").Inc()
			continue
		}
		if errors.Is(err, inbox.ErrInvalidMessage) {
			logger.Warn("Skipping invalid message", zap.String("id", message.ID), zap.Error(err))
			metrics.WebhookEvents.WithLabelValues("message", "invalid").Inc()
			continue
		}
		if err != nil {
			metrics.WebhookEvents.WithLabelValues("message", "error").Inc()
			return err
		}
	}

	for _, status := range value.Statuses {
		if err := h.processStatus(ctx, status); err != nil {
			metrics.WebhookEvents.WithLabelValues("status", "error").Inc()
			return err
		}
	}
	return nil
}

func (h *Handler) processMessage(ctx context.Context, phoneNumberID, profileName string, message waapi.WebhookMessage) error {
	result, err := h.Inbox.RecordInbound(ctx, inbox.InboundMessage{
		PhoneNumberID:     phoneNumberID,
		From:              message.From,
		ProfileName:       profileName,
		WhatsAppMessageID: message.ID,
		Type:              models.MessageTypeFromPlatform(message.Type),
		Content:           Content(message),
	})
	if err != nil {
		return err
	}
	if result.Duplicate {
		logger.Debug("Duplicate webhook message", zap.String("id", message.ID))
		metrics.WebhookEvents.WithLabelValues("message", "duplicate").Inc()
		return nil
	}

	logger.Info("Received message",
		zap.Uint("business_id", result.Business.ID),
		zap.String("from", message.From),
		zap.String("type", message.Type),
		zap.Bool("new_conversation", result.NewConversation))
	metrics.WebhookEvents.WithLabelValues("message", "recorded").Inc()

	if h.Notifier != nil {
		h.Notifier.NotifyMessage(result.Message)
	}

	if h.Responder != nil && message.Type == "text" {
		business, contact := result.Business, result.Contact
		text := message.Text.Body
		go func() {
			// the reply outlives the webhook request
			if _, err := h.Responder.ProcessIncomingMessage(context.WithoutCancel(ctx), &business, &contact, text); err != nil {
				logger.Warn("Auto reply failed", zap.Uint("business_id", business.ID), zap.Error(err))
			}
		}()
	}
	return nil
}

func (h *Handler) processStatus(ctx context.Context, event waapi.StatusEvent) error {
	status, ok := models.ParseDeliveryStatus(event.Status)
	if !ok {
		logger.Warn("Unknown delivery status", zap.String("id", event.ID), zap.String("status", event.Status))
		metrics.WebhookEvents.WithLabelValues("status", "invalid").Inc()
		return nil
	}

	update, err := h.Inbox.UpdateStatus(ctx, event.ID, status, statusErrors(event.Errors))
	if errors.Is(err, inbox.ErrInvalidMessage) {
		logger.Warn("Skipping invalid status", zap.String("id", event.ID), zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("status", "invalid").Inc()
		return nil
	}
	if err != nil {
		return err
	}
	metrics.WebhookEvents.WithLabelValues("status", string(update.Outcome)).Inc()

	if update.Outcome == inbox.StatusApplied && h.Notifier != nil {
		h.Notifier.NotifyStatus(*update.Message)
	}
	return nil
}

func statusErrors(errs []waapi.StatusError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		text := e.Title
		if e.Message != "" && e.Message != e.Title {
			text += ": " + e.Message
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.Join(parts, "; ")
}

// Content renders the stored text of an inbound message.
func Content(message waapi.WebhookMessage) string {
	switch message.Type {
	case "text":
		return message.Text.Body
	case "image":
		return media("image", message.Image, false)
	case "video":
		return media("video", message.Video, false)
	case "audio":
		return media("audio", message.Audio, false)
	case "document":
		return media("document", message.Document, true)
	case "interactive":
		if message.Interactive != nil {
			if r := message.Interactive.ButtonReply; r != nil {
				return r.Title
			}
			if r := message.Interactive.ListReply; r != nil {
				return r.Title
			}
		}
	case "button":
		if message.Button != nil {
			return message.Button.Text
		}
	}
	return "[" + message.Type + "]"
}

func media(kind string, m *waapi.MediaMessage, withFilename bool) string {
	if m == nil {
		return "[" + kind + "]"
	}
	content := "[" + kind + "]:" + m.ID
	if withFilename && m.Filename != "" {
		content += ":" + m.Filename
	}
	if m.Caption != "" {
		content += ":" + m.Caption
	}
	return content
}
