// Package trace wires up the structured logger shared by the class loader,
// interpreter and native registry. Every subsystem logs through a *zap.Logger
// obtained from here rather than constructing its own, so verbosity and
// output format stay uniform across the VM.
package trace

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the logger New builds. Verbose enables debug-level
// output (method entry/exit, class resolution, native dispatch); by
// default the VM logs at info level and above.
type Config struct {
	Verbose bool
	JSON    bool
}

// New builds the VM's root logger. Callers derive named sub-loggers with
// logger.Named("classloader"), logger.Named("interp"), etc., so log lines
// can be filtered by subsystem downstream.
func New(cfg Config) *zap.Logger {
	level := zapcore.InfoLevel
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// Noop returns a logger that discards everything, for use in tests and
// library embeddings that don't want VM chatter on stderr.
func Noop() *zap.Logger { return zap.NewNop() }
