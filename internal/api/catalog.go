package api

import (
	"errors"
	"net/http"
	"strings"

	"whatsapp-inbox/internal/catalog"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CatalogHandler struct {
	DB     *gorm.DB
	Syncer *catalog.Syncer
}

func NewCatalogHandler(db *gorm.DB, syncer *catalog.Syncer) *CatalogHandler {
	return &CatalogHandler{DB: db, Syncer: syncer}
}

func (h *CatalogHandler) GetProducts(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Where("business_profile_id = ?", currentBusiness(c).ID)
	if status := c.Query("sync_status"); status != "" {
		q = q.Where("sync_status = ?", strings.ToUpper(status))
	}
	products := []models.Product{}
	if err := q.Order("id ASC").Find(&products).Error; err != nil {
		internalError(c, "Failed to load products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

type CreateProductRequest struct {
	RetailerID  string `json:"retailer_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents" binding:"gte=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
	ImageURL    string `json:"image_url"`
	URL         string `json:"url"`
	Brand       string `json:"brand"`
	InStock     bool   `json:"in_stock"`
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	business := currentBusiness(c)
	db := h.DB.WithContext(c.Request.Context())

	var count int64
	err := db.Model(&models.Product{}).
		Where("business_profile_id = ? AND retailer_id = ?", business.ID, req.RetailerID).
		Count(&count).Error
	if err != nil {
		internalError(c, "Failed to create product", err)
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Product with this retailer_id already exists"})
		return
	}

	p := models.Product{
		BusinessProfileID: business.ID,
		RetailerID:        req.RetailerID,
		Name:              req.Name,
		Description:       req.Description,
		PriceCents:        req.PriceCents,
		Currency:          strings.ToUpper(req.Currency),
		ImageURL:          req.ImageURL,
		URL:               req.URL,
		Brand:             req.Brand,
		InStock:           req.InStock,
		SyncStatus:        models.SyncPending,
	}
	if err := db.Create(&p).Error; err != nil {
		internalError(c, "Failed to create product", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *CatalogHandler) SyncProduct(c *gin.Context) {
	id, ok := uintParam(c, "productId")
	if !ok {
		return
	}

	p, err := h.Syncer.SyncProduct(c.Request.Context(), currentBusiness(c), id)
	var apiErr *whatsapp.APIError
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, whatsapp.ErrNoCatalog), errors.Is(err, whatsapp.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "product": p})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "product": p})
	case err != nil && p == nil:
		internalError(c, "Failed to sync product", err)
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "product": p})
	default:
		c.JSON(http.StatusOK, p)
	}
}

func (h *CatalogHandler) SyncPending(c *gin.Context) {
	summary, err := h.Syncer.SyncPending(c.Request.Context(), currentBusiness(c))
	if errors.Is(err, whatsapp.ErrNoCatalog) || errors.Is(err, whatsapp.ErrMissingCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		internalError(c, "Failed to sync products", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
