package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's SQL logging through zap.
type GormLogger struct {
	SlowThreshold time.Duration
	Level         gormlogger.LogLevel
}

func NewGormLogger(slow time.Duration, debug bool) *GormLogger {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &GormLogger{SlowThreshold: slow, Level: level}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.Level = level
	return &clone
}

func (g *GormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if g.Level >= gormlogger.Info {
		L.Sugar().Infof(msg, args...)
	}
}

func (g *GormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.Level >= gormlogger.Warn {
		L.Sugar().Warnf(msg, args...)
	}
}

func (g *GormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if g.Level >= gormlogger.Error {
		L.Sugar().Errorf(msg, args...)
	}
}

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && g.Level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		L.Error("gorm query failed", append(fields, zap.Error(err))...)
	case g.SlowThreshold != 0 && elapsed > g.SlowThreshold && g.Level >= gormlogger.Warn:
		L.Warn(fmt.Sprintf("slow query >= %v", g.SlowThreshold), fields...)
	case g.Level >= gormlogger.Info:
		L.Debug("gorm query", fields...)
	}
}
