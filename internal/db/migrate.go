package db

import (
	"fmt"

	"github.com/AndrewYakovlev/aso-store/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Migration completed successfully")
	return nil
}
