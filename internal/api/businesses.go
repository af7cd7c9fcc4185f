package api

import (
	"errors"
	"net/http"

	"whatsapp-inbox/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BusinessHandler struct {
	DB *gorm.DB
}

func NewBusinessHandler(db *gorm.DB) *BusinessHandler {
	return &BusinessHandler{DB: db}
}

func (h *BusinessHandler) ListBusinesses(c *gin.Context) {
	businesses := []models.BusinessProfile{}
	if err := h.DB.WithContext(c.Request.Context()).Order("id ASC").Find(&businesses).Error; err != nil {
		internalError(c, "Failed to load businesses", err)
		return
	}
	c.JSON(http.StatusOK, businesses)
}

func (h *BusinessHandler) GetBusiness(c *gin.Context) {
	c.JSON(http.StatusOK, currentBusiness(c))
}

type CreateBusinessRequest struct {
	Name               string `json:"name" binding:"required"`
	BusinessNumber     string `json:"business_number" binding:"required"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	AccessToken        string `json:"access_token"`
	CatalogID          string `json:"catalog_id"`
}

func (h *BusinessHandler) CreateBusiness(c *gin.Context) {
	var req CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var existing models.BusinessProfile
	err := db.Where("business_number = ?", req.BusinessNumber).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Business number already registered"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		internalError(c, "Failed to create business", err)
		return
	}

	business := models.BusinessProfile{
		Name:               req.Name,
		BusinessNumber:     req.BusinessNumber,
		DisplayPhoneNumber: req.DisplayPhoneNumber,
		AccessToken:        req.AccessToken,
		CatalogID:          req.CatalogID,
	}
	if err := db.Create(&business).Error; err != nil {
		internalError(c, "Failed to create business", err)
		return
	}
	c.JSON(http.StatusCreated, business)
}
