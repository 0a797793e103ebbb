package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// Base defaults to the global logger.
	Base *zap.Logger
}

// DefaultGormLoggerConfig warns on slow statements only. Resolver lookups
// that find nothing are routine and never logged.
func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 250 * time.Millisecond,
	}
}

// GormLogger writes gorm statements to zap tagged with the statement kind and
// the table it touches. Bound parameters are never logged.
type GormLogger struct {
	cfg GormLoggerConfig
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	var level zapcore.Level
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.cfg.Level >= gormlogger.Error:
		level = zapcore.ErrorLevel
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		level = zapcore.WarnLevel
	case l.cfg.Level >= gormlogger.Info:
		level = zapcore.DebugLevel
	default:
		return
	}

	sql, rows := fc()
	kind, table := describeStatement(sql)
	fields := []zap.Field{
		zap.String("component", "db"),
		zap.String("statement", kind),
		zap.String("table", table),
		zap.Duration("elapsed", elapsed),
		zap.String("sql", strings.TrimSpace(sql)),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if level == zapcore.WarnLevel {
		fields = append(fields, zap.Duration("slow_threshold", l.cfg.SlowThreshold))
	}
	if err != nil && level == zapcore.ErrorLevel {
		fields = append(fields, zap.Error(err))
	}
	if ce := l.logger(ctx).Check(level, "db.query"); ce != nil {
		ce.Write(fields...)
	}
}

// ParamsFilter keeps amounts and user ids out of the logs.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) message(ctx context.Context, threshold gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < threshold {
		return
	}
	if len(data) > 0 {
		msg = fmt.Sprintf(msg, data...)
	}
	if ce := l.logger(ctx).Check(level, msg); ce != nil {
		ce.Write(zap.String("component", "db"))
	}
}

func (l *GormLogger) logger(ctx context.Context) *zap.Logger {
	if l.cfg.Base != nil {
		return WithContext(ctx, l.cfg.Base)
	}
	return FromContext(ctx)
}

// describeStatement returns the statement kind and the first table named
// after FROM, INTO or UPDATE. CTE prefixes are skipped.
func describeStatement(sql string) (string, string) {
	tokens := strings.Fields(strings.TrimSpace(sql))
	kind, table := "UNKNOWN", ""
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if kind == "UNKNOWN" {
				kind = token
			}
		}
		if table != "" || i+1 >= len(tokens) {
			continue
		}
		if token == "FROM" || token == "INTO" || (token == "UPDATE" && kind == "UPDATE") {
			table = strings.Trim(tokens[i+1], "`\"();")
		}
	}
	return kind, table
}

var _ gormlogger.Interface = (*GormLogger)(nil)
