// Package catalog mirrors business products into the WhatsApp commerce catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsapp-inbox/internal/metrics"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/whatsapp"
	"whatsapp-inbox/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

// Publisher pushes one catalog item to the platform.
type Publisher interface {
	UpsertProduct(ctx context.Context, catalogID, token string, item whatsapp.CatalogItem) (string, error)
}

type Syncer struct {
	db        *gorm.DB
	publisher Publisher
	now       func() time.Time
}

func NewSyncer(db *gorm.DB, publisher Publisher) *Syncer {
	return &Syncer{db: db, publisher: publisher, now: time.Now}
}

// ToCatalogItem maps a product onto the platform's catalog item format.
func ToCatalogItem(p models.Product) whatsapp.CatalogItem {
	availability := "out of stock"
	if p.InStock {
		availability = "in stock"
	}
	return whatsapp.CatalogItem{
		RetailerID:   p.RetailerID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.PriceCents,
		Currency:     strings.ToUpper(p.Currency),
		Availability: availability,
		Condition:    "new",
		ImageURL:     p.ImageURL,
		URL:          p.URL,
		Brand:        p.Brand,
	}
}

// SyncProduct pushes one product and records the outcome on it. A failed push
// is stored as FAILED with the error and also returned.
func (s *Syncer) SyncProduct(ctx context.Context, business *models.BusinessProfile, productID uint) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where("id = ? AND business_profile_id = ?", productID, business.ID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, s.push(ctx, business, &p)
}

// SyncSummary counts the outcome of SyncPending.
type SyncSummary struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// SyncPending pushes every product of the business that is not yet synced.
func (s *Syncer) SyncPending(ctx context.Context, business *models.BusinessProfile) (SyncSummary, error) {
	var summary SyncSummary
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("business_profile_id = ? AND sync_status <> ?", business.ID, models.SyncSynced).
		Order("id ASC").Find(&products).Error
	if err != nil {
		return summary, fmt.Errorf("load pending products: %w", err)
	}

	for i := range products {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err := s.push(ctx, business, &products[i]); err != nil {
			if errors.Is(err, whatsapp.ErrNoCatalog) || errors.Is(err, whatsapp.ErrMissingCredentials) {
				return summary, err
			}
			summary.Failed++
			continue
		}
		summary.Synced++
	}
	return summary, nil
}

func (s *Syncer) push(ctx context.Context, business *models.BusinessProfile, p *models.Product) error {
	if business.CatalogID == "" {
		return whatsapp.ErrNoCatalog
	}
	externalID, pushErr := s.publisher.UpsertProduct(ctx, business.CatalogID, business.AccessToken, ToCatalogItem(*p))

	p.SyncAttempts++
	columns := map[string]interface{}{"sync_attempts": p.SyncAttempts}
	if pushErr != nil {
		p.SyncStatus = models.SyncFailed
		p.LastSyncError = pushErr.Error()
		metrics.CatalogSync.WithLabelValues("failed").Inc()
		logger.Warn("Catalog sync failed",
			zap.Uint("business_id", business.ID),
			zap.String("retailer_id", p.RetailerID),
			zap.Error(pushErr))
	} else {
		now := s.now().UTC()
		p.SyncStatus = models.SyncSynced
		p.LastSyncError = ""
		p.SyncedAt = &now
		if externalID != "" {
			p.ExternalID = externalID
		}
		columns["synced_at"] = now
		columns["external_id"] = p.ExternalID
		metrics.CatalogSync.WithLabelValues("synced").Inc()
	}
	columns["sync_status"] = p.SyncStatus
	columns["last_sync_error"] = p.LastSyncError

	// bookkeeping must land even if the request context is gone
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Model(p).Updates(columns).Error; err != nil {
		return fmt.Errorf("record sync of %s: %w", p.RetailerID, err)
	}
	if pushErr != nil {
		return fmt.Errorf("sync %s: %w", p.RetailerID, pushErr)
	}
	return nil
}
