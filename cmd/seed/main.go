package main

import (
	"errors"
	"flag"
	"log"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// seed registers a business so the webhook can resolve its phone-number id.
func main() {
	name := flag.String("name", "", "business name")
	number := flag.String("number", "", "Cloud API phone-number id")
	display := flag.String("display", "", "display phone number")
	token := flag.String("token", "", "Cloud API access token")
	catalogID := flag.String("catalog", "", "commerce catalog id")
	flag.Parse()

	if *name == "" || *number == "" {
		log.Fatal("-name and -number are required")
	}

	cfg := config.LoadConfig()
	if err := logger.Init(cfg.LogLevel, cfg.LogPath); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	var business models.BusinessProfile
	err = db.Where("business_number = ?", *number).First(&business).Error
	switch {
	case err == nil:
		err = db.Model(&business).Updates(models.BusinessProfile{
			Name:               *name,
			DisplayPhoneNumber: *display,
			AccessToken:        *token,
			CatalogID:          *catalogID,
		}).Error
		if err != nil {
			logger.Fatal("Failed to update business", zap.Error(err))
		}
		logger.Info("Updated business", zap.Uint("id", business.ID), zap.String("number", *number))
	case errors.Is(err, gorm.ErrRecordNotFound):
		business = models.BusinessProfile{
			Name:               *name,
			BusinessNumber:     *number,
			DisplayPhoneNumber: *display,
			AccessToken:        *token,
			CatalogID:          *catalogID,
		}
		if err := db.Create(&business).Error; err != nil {
			logger.Fatal("Failed to create business", zap.Error(err))
		}
		logger.Info("Created business", zap.Uint("id", business.ID), zap.String("number", *number))
	default:
		logger.Fatal("Failed to look up business", zap.Error(err))
	}
}
