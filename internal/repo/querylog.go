package repo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// queryLogger sends GORM's output through the request logger in ctx, so SQL
// errors and slow statements carry the request_id of the call that ran them.
type queryLogger struct {
	level logger.LogLevel
	slow  time.Duration
}

func newQueryLogger(slow time.Duration) *queryLogger {
	return &queryLogger{level: logger.Warn, slow: slow}
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		zerolog.Ctx(ctx).Info().Msgf(msg, args...)
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		zerolog.Ctx(ctx).Warn().Msgf(msg, args...)
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		zerolog.Ctx(ctx).Error().Msgf(msg, args...)
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	var ev *zerolog.Event
	switch {
	// not-found is an expected outcome the services translate themselves
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		ev = zerolog.Ctx(ctx).Error().Err(err)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		ev = zerolog.Ctx(ctx).Warn().Dur("threshold", l.slow)
	case l.level >= logger.Info:
		ev = zerolog.Ctx(ctx).Debug()
	default:
		return
	}
	sql, rows := fc()
	ev.Str("component", "gorm").Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("sql")
}
