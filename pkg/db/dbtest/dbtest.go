// Package dbtest opens throwaway SQLite databases for package tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
)

// New returns an isolated in-memory database with every model migrated. A
// single connection serializes transactions, which is how SQLite behaves under
// write contention anyway.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cm_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return conn
}

// NewClient wraps New in the shared db.Client.
func NewClient(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(New(t))
}
