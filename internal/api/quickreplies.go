package api

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/quickreply"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type QuickReplyHandler struct {
	DB *gorm.DB
}

func NewQuickReplyHandler(db *gorm.DB) *QuickReplyHandler {
	return &QuickReplyHandler{DB: db}
}

func (h *QuickReplyHandler) GetQuickReplies(c *gin.Context) {
	replies := []models.QuickReply{}
	err := h.DB.WithContext(c.Request.Context()).
		Where("business_profile_id = ?", currentBusiness(c).ID).
		Order("priority DESC, id ASC").Find(&replies).Error
	if err != nil {
		internalError(c, "Failed to load quick replies", err)
		return
	}
	c.JSON(http.StatusOK, replies)
}

type QuickReplyRequest struct {
	Shortcut      string `json:"shortcut" binding:"required"`
	Keyword       string `json:"keyword"`
	MatchOperator string `json:"match_operator"`
	Body          string `json:"body" binding:"required"`
	AutoReply     bool   `json:"auto_reply"`
	Priority      int    `json:"priority"`
}

func (r *QuickReplyRequest) validate() error {
	r.MatchOperator = strings.ToLower(strings.TrimSpace(r.MatchOperator))
	if !quickreply.ValidOperator(r.MatchOperator) {
		return errors.New("invalid match_operator")
	}
	if r.AutoReply && strings.TrimSpace(r.Keyword) == "" {
		return errors.New("keyword is required for auto replies")
	}
	if r.MatchOperator == quickreply.OpRegex {
		if _, err := regexp.Compile(r.Keyword); err != nil {
			return errors.New("invalid regex: " + err.Error())
		}
	}
	return nil
}

func (h *QuickReplyHandler) CreateQuickReply(c *gin.Context) {
	var req QuickReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	qr := models.QuickReply{
		BusinessProfileID: currentBusiness(c).ID,
		Shortcut:          req.Shortcut,
		Keyword:           req.Keyword,
		MatchOperator:     req.MatchOperator,
		Body:              req.Body,
		AutoReply:         req.AutoReply,
		Priority:          req.Priority,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&qr).Error; err != nil {
		internalError(c, "Failed to create quick reply", err)
		return
	}
	c.JSON(http.StatusCreated, qr)
}

func (h *QuickReplyHandler) find(c *gin.Context) (*models.QuickReply, bool) {
	id, ok := uintParam(c, "quickReplyId")
	if !ok {
		return nil, false
	}
	var qr models.QuickReply
	err := h.DB.WithContext(c.Request.Context()).
		Where("id = ? AND business_profile_id = ?", id, currentBusiness(c).ID).First(&qr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quick reply not found"})
		return nil, false
	}
	if err != nil {
		internalError(c, "Failed to load quick reply", err)
		return nil, false
	}
	return &qr, true
}

func (h *QuickReplyHandler) UpdateQuickReply(c *gin.Context) {
	qr, ok := h.find(c)
	if !ok {
		return
	}
	var req QuickReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	err := db.Model(qr).Updates(map[string]interface{}{
		"shortcut":       req.Shortcut,
		"keyword":        req.Keyword,
		"match_operator": req.MatchOperator,
		"body":           req.Body,
		"auto_reply":     req.AutoReply,
		"priority":       req.Priority,
	}).Error
	if err != nil {
		internalError(c, "Failed to update quick reply", err)
		return
	}
	if err := db.First(qr, qr.ID).Error; err != nil {
		internalError(c, "Failed to update quick reply", err)
		return
	}
	c.JSON(http.StatusOK, qr)
}

func (h *QuickReplyHandler) DeleteQuickReply(c *gin.Context) {
	qr, ok := h.find(c)
	if !ok {
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Delete(qr).Error; err != nil {
		internalError(c, "Failed to delete quick reply", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Quick reply deleted"})
}
