package database

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"github.com/supplai-io/supplai/internal/util"
)

// zapLogger sends gorm's logs through zap, tagging every line with the trace id of the request.
type zapLogger struct {
	logger        *zap.SugaredLogger
	slowThreshold time.Duration
	level         logger.LogLevel
}

func NewLogger(sugar *zap.SugaredLogger) logger.Interface {
	return &zapLogger{
		logger:        sugar,
		slowThreshold: 200 * time.Millisecond,
		level:         logger.Warn,
	}
}

func (z *zapLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *z
	clone.level = level
	return &clone
}

func (z *zapLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if z.level >= logger.Info {
		util.WithTrace(ctx, z.logger).Infof(msg, args...)
	}
}

func (z *zapLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if z.level >= logger.Warn {
		util.WithTrace(ctx, z.logger).Warnf(msg, args...)
	}
}

func (z *zapLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if z.level >= logger.Error {
		util.WithTrace(ctx, z.logger).Errorf(msg, args...)
	}
}

func (z *zapLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if z.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	elapsedMs := float64(elapsed.Nanoseconds()) / 1e6
	switch {
	// record not found is an expected outcome of lookups, not worth a log line
	case err != nil && z.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		util.WithTrace(ctx, z.logger).Debugw(sql,
			"line_number", utils.FileWithLineNum(),
			"error", err.Error(),
			"rows", rows,
			"elapsed_ms", elapsedMs,
		)
	case z.slowThreshold != 0 && elapsed > z.slowThreshold && z.level >= logger.Warn:
		sql, rows := fc()
		util.WithTrace(ctx, z.logger).Warnw(sql,
			"line_number", utils.FileWithLineNum(),
			"slow_threshold", z.slowThreshold.String(),
			"rows", rows,
			"elapsed_ms", elapsedMs,
		)
	case z.level == logger.Info:
		sql, rows := fc()
		util.WithTrace(ctx, z.logger).Infow(sql,
			"line_number", utils.FileWithLineNum(),
			"rows", rows,
			"elapsed_ms", elapsedMs,
		)
	}
}
