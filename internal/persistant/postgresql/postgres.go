// Package postgresql owns the gorm session backing the messaging and
// listing repositories.
package postgresql

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	connectAttempts = 5
	connectInterval = 2 * time.Second
)

// Initialize opens the database session, retrying while the instance
// comes up, and migrates the given models.
func Initialize(connStr string, models []any) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	for attempt := 0; attempt < connectAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(connectInterval)
		}
		db, err = gorm.Open(postgres.Open(connStr), &gorm.Config{})
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
