package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/hci-study-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureIndexes(db)
}

// EnsureIndexes adds lookup indexes not expressed on the models.
func EnsureIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_user_selections_user_id ON user_selections(user_id);`).Error; err != nil {
		return fmt.Errorf("create idx_user_selections_user_id: %w", err)
	}
	return nil
}
