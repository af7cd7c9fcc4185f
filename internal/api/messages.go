package api

import (
	"errors"
	"net/http"
	"strings"

	"whatsapp-inbox/internal/inbox"
	"whatsapp-inbox/internal/outbound"
	"whatsapp-inbox/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	Dispatcher *outbound.Dispatcher
}

func NewMessageHandler(dispatcher *outbound.Dispatcher) *MessageHandler {
	return &MessageHandler{Dispatcher: dispatcher}
}

type SendRequest struct {
	To           string   `json:"to" binding:"required"`
	Type         string   `json:"type"`
	Body         string   `json:"body"`
	Link         string   `json:"link"`
	Caption      string   `json:"caption"`
	Filename     string   `json:"filename"`
	TemplateName string   `json:"template_name"`
	Language     string   `json:"language"`
	Params       []string `json:"params"`
	RetailerID   string   `json:"retailer_id"`
}

// Build turns the request into a Cloud API payload.
func (r SendRequest) Build(catalogID string) (whatsapp.GenericMessage, error) {
	switch strings.ToLower(r.Type) {
	case "", "text":
		if r.Body == "" {
			return whatsapp.GenericMessage{}, errors.New("body is required")
		}
		return whatsapp.TextMessage(r.To, r.Body), nil
	case "image", "video", "document":
		if r.Link == "" {
			return whatsapp.GenericMessage{}, errors.New("link is required")
		}
		switch strings.ToLower(r.Type) {
		case "image":
			return whatsapp.ImageMessage(r.To, r.Link, r.Caption), nil
		case "video":
			return whatsapp.VideoMessage(r.To, r.Link, r.Caption), nil
		}
		return whatsapp.DocumentMessage(r.To, r.Link, r.Filename, r.Caption), nil
	case "template":
		if r.TemplateName == "" {
			return whatsapp.GenericMessage{}, errors.New("template_name is required")
		}
		lang := r.Language
		if lang == "" {
			lang = "en_US"
		}
		return whatsapp.TemplateMessage(r.To, r.TemplateName, lang, r.Params...), nil
	case "product":
		if catalogID == "" {
			return whatsapp.GenericMessage{}, whatsapp.ErrNoCatalog
		}
		if r.RetailerID == "" {
			return whatsapp.GenericMessage{}, errors.New("retailer_id is required")
		}
		return whatsapp.ProductMessage(r.To, catalogID, r.RetailerID, r.Body), nil
	default:
		return whatsapp.GenericMessage{}, errors.New("unsupported message type " + r.Type)
	}
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	business := currentBusiness(c)
	msg, err := req.Build(business.CatalogID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.Dispatcher.Send(c.Request.Context(), business, msg)
	var apiErr *whatsapp.APIError
	switch {
	case errors.Is(err, inbox.ErrInvalidMessage), errors.Is(err, whatsapp.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message: " + apiErr.Body, "message": record})
	case err != nil:
		internalError(c, "Failed to send message", err)
	default:
		c.JSON(http.StatusOK, record)
	}
}
