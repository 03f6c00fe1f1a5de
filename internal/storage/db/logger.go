package db

import (
	"context"
	"errors"
	"time"

	"webprobe/internal/logger"

	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

// Logger 将 GORM 日志对接到项目统一日志系统
type Logger struct {
	log           logger.Logger
	level         glog.LogLevel
	slowThreshold time.Duration
}

// NewLogger 创建新的 Logger 实例，默认只记录警告与错误
func NewLogger(l logger.Logger) *Logger {
	if l == nil {
		l = logger.NewNop()
	}
	return &Logger{
		log:           l.With("component", "gorm"),
		level:         glog.Warn,
		slowThreshold: 500 * time.Millisecond,
	}
}

// LogMode 实现 logger.Interface 接口
func (l *Logger) LogMode(level glog.LogLevel) glog.Interface {
	cp := *l
	cp.level = level
	return &cp
}

// Info 打印 info 级别日志
func (l *Logger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= glog.Info {
		l.log.Info(msg, "data", data)
	}
}

// Warn 打印 warn 级别日志
func (l *Logger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= glog.Warn {
		l.log.Warn(msg, "data", data)
	}
}

// Error 打印 error 级别日志
func (l *Logger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= glog.Error {
		l.log.Error(msg, "data", data)
	}
}

// Trace 打印 SQL 执行详情
func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= glog.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{"sql", sql, "rows", rows, "elapsed", elapsed.String()}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= glog.Error:
		l.log.Err(err, "SQL执行错误", fields...)
	case elapsed > l.slowThreshold && l.level >= glog.Warn:
		l.log.Warn("慢SQL查询", fields...)
	case l.level >= glog.Info:
		l.log.Debug("SQL执行", fields...)
	}
}
