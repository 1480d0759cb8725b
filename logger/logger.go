// Package logger holds the process-wide zap logger
package logger

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/LdDl/shapecount/config"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
)

// Build creates logger writing to stderr and, when configured, to the log file
func Build(cfg config.Log) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't parse log level '%s'", cfg.Level)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	zcfg.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.File)
	}
	l, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "Can't build logger")
	}
	return l, nil
}

// Init builds logger and installs it as package and zap global logger
func Init(cfg config.Log) error {
	l, err := Build(cfg)
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

func setLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
}

// Log returns *zap.Logger (never nil; noop before Init)
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// Sync flushes buffered entries
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
