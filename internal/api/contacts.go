package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ContactHandler struct {
	DB *gorm.DB
}

func NewContactHandler(db *gorm.DB) *ContactHandler {
	return &ContactHandler{DB: db}
}

func (h *ContactHandler) contacts(c *gin.Context) ([]models.Contact, error) {
	q := h.DB.WithContext(c.Request.Context()).Where("business_profile_id = ?", currentBusiness(c).ID)
	if tag := c.Query("tag"); tag != "" {
		q = q.Where("tags LIKE ?", "%\""+strings.ReplaceAll(tag, "\"", "")+"\"%")
	}
	contacts := []models.Contact{}
	err := q.Order("created_at DESC, id DESC").Find(&contacts).Error
	return contacts, err
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.contacts(c)
	if err != nil {
		internalError(c, "Failed to load contacts", err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

type UpdateContactRequest struct {
	Name          *string  `json:"name"`
	Tags          []string `json:"tags"`
	WhatsAppOptIn *bool    `json:"whatsapp_opt_in"`
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id, ok := uintParam(c, "contactId")
	if !ok {
		return
	}
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var contact models.Contact
	err := db.Where("id = ? AND business_profile_id = ?", id, currentBusiness(c).ID).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}
	if err != nil {
		internalError(c, "Failed to update contact", err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Tags != nil {
		tags, _ := json.Marshal(normalizeTags(req.Tags))
		updates["tags"] = string(tags)
	}
	if req.WhatsAppOptIn != nil {
		updates["whatsapp_opt_in"] = *req.WhatsAppOptIn
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, contact)
		return
	}

	if err := db.Model(&contact).Updates(updates).Error; err != nil {
		internalError(c, "Failed to update contact", err)
		return
	}
	if err := db.First(&contact, contact.ID).Error; err != nil {
		internalError(c, "Failed to update contact", err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	contacts, err := h.contacts(c)
	if err != nil {
		internalError(c, "Failed to export contacts", err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Phone Number", "Name", "Tags", "Opted In", "Created At"})
	for _, ct := range contacts {
		var tags []string
		if ct.Tags != "" {
			_ = json.Unmarshal([]byte(ct.Tags), &tags)
		}
		_ = w.Write([]string{
			ct.PhoneNumber,
			ct.Name,
			strings.Join(tags, ";"),
			strconv.FormatBool(ct.WhatsAppOptIn),
			ct.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logger.Warn("Contact export interrupted", zap.Error(err))
	}
}
