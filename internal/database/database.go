package database

import (
	"fmt"
	"log"

	"transmito/internal/config"
	"transmito/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the database and runs migrations. PostgreSQL is used when
// DB_HOST is configured, otherwise a local SQLite file.
func Init(cfg *config.Config) {
	var err error

	if cfg.DBHost != "" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		log.Println("Connected to PostgreSQL")
	} else {
		DB, err = gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			log.Fatalf("Failed to open SQLite database: %v", err)
		}
		log.Printf("Opened SQLite database at %s", cfg.DBPath)
	}

	err = DB.AutoMigrate(
		&models.Contact{},
		&models.Account{},
		&models.TransmissionRecord{},
		&models.MessageLog{},
	)
	if err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}

	log.Println("Database migration completed")
}

// LoadAccount returns the single account row, creating it if missing.
func LoadAccount() (*models.Account, error) {
	var account models.Account
	err := DB.FirstOrCreate(&account, models.Account{ID: 1}).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SaveAccountNumber persists the linked phone number and, when present,
// the instance credential issued by the session service.
func SaveAccountNumber(number, credential string) error {
	account, err := LoadAccount()
	if err != nil {
		return err
	}
	account.RegisteredNumber = number
	if credential != "" {
		account.InstanceToken = credential
	}
	return DB.Save(account).Error
}
