package infra

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Path       string // Log file; empty logs to stderr only
	Debug      bool
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger builds a JSON logger writing to a rotating file.
func NewLogger(opts LoggerOptions) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	if opts.Path == "" {
		return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stderr), level))
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		// Fallback to stderr if the log directory cannot be created
		return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stderr), level))
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 5
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	})
	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level))
}
