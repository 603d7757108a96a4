package store_test

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/campanio/backend/internal/config"
	"github.com/campanio/backend/internal/logger"
	"github.com/campanio/backend/internal/model/chat"
	"github.com/campanio/backend/internal/model/day"
	"github.com/campanio/backend/internal/store"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	db, err := store.Open(config.DatabaseConfig{Driver: "sqlite", URL: "file::memory:"}, logger.Nop())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)

	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate err: %v", err)
	}

	for _, model := range []any{&day.Day{}, &chat.Chat{}, &chat.Message{}} {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
	if !db.Migrator().HasIndex(&day.Day{}, "uidx_day_user_date") {
		t.Fatal("expected unique index on user and date")
	}
	if !db.Migrator().HasIndex(&chat.Message{}, "idx_message_chat_seq") {
		t.Fatal("expected message order index")
	}
}

func TestQueriesLogThroughApplicationLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	db, err := store.Open(config.DatabaseConfig{Driver: "sqlite", URL: "file::memory:"}, log)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate err: %v", err)
	}

	var d day.Day
	if err := db.Where("id = ?", "missing").Take(&d).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := logs.FilterMessage("query failed").Len(); n != 0 {
		t.Fatalf("missing rows must not be logged as failures, got %d", n)
	}

	if err := db.Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatal("expected query error")
	}
	failed := logs.FilterMessage("query failed").All()
	if len(failed) != 1 || failed[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected one failed query entry, got %+v", logs.All())
	}
	if failed[0].ContextMap()["component"] != "gorm" {
		t.Fatalf("entry should be tagged with the gorm component: %+v", failed[0].ContextMap())
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := store.Open(config.DatabaseConfig{Driver: "oracle", URL: "x"}, logger.Nop()); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
