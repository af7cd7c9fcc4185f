package database

import (
	"fmt"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const copyBatchSize = 500

// CopyAll copies every table from src into dst in one transaction, keeping
// primary keys. It returns the number of rows copied per table.
func CopyAll(src, dst *gorm.DB) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := dst.Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			table string
			copy  func() (int64, error)
		}{
			{"business_profiles", func() (int64, error) { return copyTable[models.BusinessProfile](src, tx) }},
			{"contacts", func() (int64, error) { return copyTable[models.Contact](src, tx) }},
			{"conversations", func() (int64, error) { return copyTable[models.Conversation](src, tx) }},
			{"messages", func() (int64, error) { return copyTable[models.Message](src, tx) }},
			{"products", func() (int64, error) { return copyTable[models.Product](src, tx) }},
			{"quick_replies", func() (int64, error) { return copyTable[models.QuickReply](src, tx) }},
			{"broadcasts", func() (int64, error) { return copyTable[models.Broadcast](src, tx) }},
		}
		for _, step := range steps {
			n, err := step.copy()
			if err != nil {
				return fmt.Errorf("copy %s: %w", step.table, err)
			}
			counts[step.table] = n
			logger.Info("Migrated table", zap.String("table", step.table), zap.Int64("rows", n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func copyTable[T any](src, dst *gorm.DB) (int64, error) {
	var rows []T
	if err := src.Order("id ASC").Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	// associations are copied as their own tables
	if err := dst.Omit(clause.Associations).CreateInBatches(rows, copyBatchSize).Error; err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// SyncSequences moves each Postgres id sequence past the copied rows so new
// inserts do not collide. Other dialects need nothing.
func SyncSequences(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, model := range models.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return err
		}
		table := stmt.Schema.Table
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
		logger.Info("Synced sequence", zap.String("table", table))
	}
	return nil
}
