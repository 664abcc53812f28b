package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// queryLogger routes GORM's trace output into the structured service logger.
// Failed queries and slow queries log at warn; every query logs at debug.
type queryLogger struct {
	logg  *logger.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return &queryLogger{logg: logg, slow: slow, level: gormlogger.Warn}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !expectedQueryError(err)
	slow := q.slow > 0 && elapsed > q.slow

	if !failed && !slow && q.level < gormlogger.Info {
		return
	}

	query, rows := fc()
	fields := map[string]any{
		"sql":        query,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	switch {
	case failed:
		fields["db_error"] = err.Error()
		q.logg.Warn(q.logg.WithFields(ctx, fields), "db query failed")
	case slow:
		q.logg.Warn(q.logg.WithFields(ctx, fields), "slow db query")
	default:
		q.logg.Debug(q.logg.WithFields(ctx, fields), "db query")
	}
}

// Missing rows and unique conflicts are normal control flow for callers.
func expectedQueryError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || IsUniqueViolation(err, "")
}
