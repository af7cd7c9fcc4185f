package main

import (
	"log"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// migrate_data copies a local SQLite inbox (DB_PATH) into the Postgres
// database configured by DB_HOST, DB_NAME and friends.
func main() {
	cfg := config.LoadConfig()
	if err := logger.Init(cfg.LogLevel, cfg.LogPath); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 1. Connect to SQLite (Source)
	sqliteDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Fatal("Failed to connect to SQLite", zap.Error(err))
	}
	logger.Info("Connected to SQLite", zap.String("path", cfg.DBPath))

	// 2. Connect to PostgreSQL (Destination)
	cfg.DBDriver = config.DriverPostgres
	pgDB, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer database.Close(pgDB)

	logger.Info("Starting data migration")
	counts, err := database.CopyAll(sqliteDB, pgDB)
	if err != nil {
		logger.Fatal("Data migration failed", zap.Error(err))
	}

	if err := database.SyncSequences(pgDB); err != nil {
		logger.Fatal("Failed to sync sequences", zap.Error(err))
	}
	logger.Info("Migration completed", zap.Any("rows", counts))
}
