package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/models"
)

var ErrMissingCredentials = errors.New("business has no Cloud API credentials")

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.GraphAPIURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type,omitempty"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             *TextObj        `json:"text,omitempty"`
	Image            *MediaObj       `json:"image,omitempty"`
	Video            *MediaObj       `json:"video,omitempty"`
	Document         *MediaObj       `json:"document,omitempty"`
	Template         *TemplateObj    `json:"template,omitempty"`
	Interactive      *InteractiveObj `json:"interactive,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type MediaObj struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"` // For documents
}

type TemplateObj struct {
	Name       string         `json:"name"`
	Language   LanguageObj    `json:"language"`
	Components []ComponentObj `json:"components,omitempty"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

type ComponentObj struct {
	Type       string         `json:"type"`
	SubType    string         `json:"sub_type,omitempty"`
	Parameters []ParameterObj `json:"parameters"`
	Index      string         `json:"index,omitempty"` // For buttons
}

type ParameterObj struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type InteractiveObj struct {
	Type   string     `json:"type"`
	Body   *BodyObj   `json:"body,omitempty"`
	Footer *FooterObj `json:"footer,omitempty"`
	Action ActionObj  `json:"action"`
}

type BodyObj struct {
	Text string `json:"text"`
}

type FooterObj struct {
	Text string `json:"text"`
}

type ActionObj struct {
	CatalogID         string `json:"catalog_id,omitempty"`
	ProductRetailerID string `json:"product_retailer_id,omitempty"`
}

// SendResponse is the Graph API answer to POST /{phone-number-id}/messages
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the wamid assigned to the first message, if any.
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, url, token string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// --- Messaging Methods ---

// SendRawMessage posts msg from the business's phone number.
func (c *Client) SendRawMessage(ctx context.Context, business *models.BusinessProfile, msg GenericMessage) (*SendResponse, error) {
	if business.BusinessNumber == "" || business.AccessToken == "" {
		return nil, ErrMissingCredentials
	}
	if msg.MessagingProduct == "" {
		msg.MessagingProduct = "whatsapp"
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, business.BusinessNumber)
	resp, err := c.sendRequest(ctx, http.MethodPost, url, business.AccessToken, msg)
	if err != nil {
		return nil, err
	}

	var out SendResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}
	return &out, nil
}

func TextMessage(to, body string) GenericMessage {
	return GenericMessage{
		To:   to,
		Type: "text",
		Text: &TextObj{Body: body},
	}
}

func ImageMessage(to, link, caption string) GenericMessage {
	return GenericMessage{
		To:    to,
		Type:  "image",
		Image: &MediaObj{Link: link, Caption: caption},
	}
}

func VideoMessage(to, link, caption string) GenericMessage {
	return GenericMessage{
		To:    to,
		Type:  "video",
		Video: &MediaObj{Link: link, Caption: caption},
	}
}

func DocumentMessage(to, link, filename, caption string) GenericMessage {
	return GenericMessage{
		To:       to,
		Type:     "document",
		Document: &MediaObj{Link: link, Filename: filename, Caption: caption},
	}
}

// TemplateMessage builds a template send; bodyParams fill the body placeholders in order.
func TemplateMessage(to, templateName, languageCode string, bodyParams ...string) GenericMessage {
	tmpl := &TemplateObj{
		Name:     templateName,
		Language: LanguageObj{Code: languageCode},
	}
	if len(bodyParams) > 0 {
		params := make([]ParameterObj, 0, len(bodyParams))
		for _, p := range bodyParams {
			params = append(params, ParameterObj{Type: "text", Text: p})
		}
		tmpl.Components = []ComponentObj{{Type: "body", Parameters: params}}
	}
	return GenericMessage{To: to, Type: "template", Template: tmpl}
}

// ProductMessage shares one catalogue item.
func ProductMessage(to, catalogID, retailerID, body string) GenericMessage {
	msg := GenericMessage{
		To:   to,
		Type: "interactive",
		Interactive: &InteractiveObj{
			Type:   "product",
			Action: ActionObj{CatalogID: catalogID, ProductRetailerID: retailerID},
		},
	}
	if body != "" {
		msg.Interactive.Body = &BodyObj{Text: body}
	}
	return msg
}

// Summary renders a short human description of msg for previews and history.
func Summary(msg GenericMessage) string {
	switch {
	case msg.Text != nil:
		return msg.Text.Body
	case msg.Template != nil:
		return "Template: " + msg.Template.Name
	case msg.Image != nil:
		return mediaSummary("image", msg.Image)
	case msg.Video != nil:
		return mediaSummary("video", msg.Video)
	case msg.Document != nil:
		return mediaSummary("document", msg.Document)
	case msg.Interactive != nil && msg.Interactive.Type == "product":
		return "[product]:" + msg.Interactive.Action.ProductRetailerID
	default:
		return fmt.Sprintf("%s message", msg.Type)
	}
}

func mediaSummary(kind string, m *MediaObj) string {
	s := "[" + kind + "]:" + m.Link
	if m.Filename != "" {
		s += ":" + m.Filename
	}
	if m.Caption != "" {
		s += ":" + m.Caption
	}
	return s
}
