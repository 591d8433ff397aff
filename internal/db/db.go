package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/billing"
	"github.com/lingodoc/platform/internal/models"
	"github.com/lingodoc/platform/internal/notify"
	"github.com/lingodoc/platform/internal/translation"
)

// Connect opens the MySQL connection and migrates the schema.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.File{},
		&billing.Payment{},
		&translation.Job{},
		&notify.Notification{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	return gdb
}
