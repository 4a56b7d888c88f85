// Package logger builds the process logger: a console core on stderr and an
// optional JSON core writing to a rotated log file.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// Options controls where and how much the logger writes.
type Options struct {
	Verbose bool
	// File is the path of the rotated log file. Empty disables file output.
	File string
}

func level(verbose bool) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// newConsoleCore builds a console encoder core targeting stderr.
func newConsoleCore(lvl zapcore.LevelEnabler) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewConsoleEncoder(cfg)
	return zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl)
}

func newFileCore(path string, lvl zapcore.LevelEnabler) (zapcore.Core, *lumberjack.Logger) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		LocalTime:  true,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(rotator), lvl), rotator
}

// New returns a sugared logger and a cleanup func that flushes buffered
// entries and closes the log file.
func New(opts Options) (*zap.SugaredLogger, func()) {
	lvl := zap.NewAtomicLevelAt(level(opts.Verbose))

	cores := []zapcore.Core{newConsoleCore(lvl)}
	var rotator *lumberjack.Logger
	if opts.File != "" {
		var fileCore zapcore.Core
		fileCore, rotator = newFileCore(opts.File, lvl)
		cores = append(cores, fileCore)
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	cleanup := func() {
		_ = base.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return base.Sugar(), cleanup
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
