package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portfolio/models"
)

func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	err := db.AutoMigrate(
		&models.Blog{},
		&models.Image{},
	)

	if err != nil {
		log.Error("error running migrations", zap.Error(err))
		return err
	}

	log.Info("migrations completed successfully")
	return nil
}
