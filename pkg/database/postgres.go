// backend/pkg/database/postgres.go
package database

import (
	"context"
	"errors"
	"fmt"
	"net"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

func NewPostgresDB(config *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		config.Host,
		config.User,
		config.Password,
		config.DBName,
		config.Port,
	)

	// TranslateError lets repositories detect unique-constraint races via
	// gorm.ErrDuplicatedKey instead of parsing driver-specific codes.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// IsTransient reports whether err looks like a connection-level failure that
// is safe to retry for an idempotent read. Writes are never retried on it.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// RetryRead runs fn and retries it once if the failure is transient.
func RetryRead(fn func() error) error {
	err := fn()
	if err != nil && IsTransient(err) {
		return fn()
	}
	return err
}
