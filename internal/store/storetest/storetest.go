// Package storetest provides throwaway databases for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/campanio/backend/internal/store"
)

// DB opens a migrated in-memory sqlite database private to the calling test.
// It holds a single connection, so callers never overlap.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db := open(tb, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	// shared-cache sqlite reports table locks instead of waiting.
	sqlDB.SetMaxOpenConns(1)
	return db
}

// FileDB opens a migrated sqlite database on disk with a real connection
// pool. Transactions take the write lock on BEGIN and wait for each other,
// so goroutines race the same way they would against postgres.
func FileDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "campanio.db")
	db := open(tb, path+"?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate")
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(8)
	return db
}

func open(tb testing.TB, dsn string) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Discard,
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Count returns the number of rows of model matching the optional condition.
func Count(tb testing.TB, db *gorm.DB, model any, query string, args ...any) int64 {
	tb.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		tb.Fatalf("count rows: %v", err)
	}
	return n
}
