package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/campanio/backend/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// queryLogger sends gorm's output through the application logger.
type queryLogger struct {
	log   *logger.Logger
	level gormLogger.LogLevel
	slow  time.Duration
}

func newQueryLogger(log *logger.Logger, level gormLogger.LogLevel) gormLogger.Interface {
	return &queryLogger{log: log.With("component", "gorm"), level: level, slow: slowQueryThreshold}
}

func (l *queryLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed and slow statements. Missing rows and unique violations
// are normal control flow here and only show up at debug.
func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormLogger.Error &&
		!errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey):
		sql, rows := fc()
		l.log.Error("query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > l.slow && l.level >= gormLogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= gormLogger.Info:
		sql, rows := fc()
		l.log.Debug("query", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	}
}
