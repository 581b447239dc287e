// Package observability wires structured logging, metrics, and tracing for
// the engine, following the teacher's zap + CloudWatch-metrics shape
// (adapted here to zap + Prometheus, since the engine has no AWS runtime).
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap.Logger for the given level ("debug", "info",
// "warn", "error"), mirroring cmd/api's production logger setup. The
// returned AtomicLevel lets a caller change the level after construction
// (e.g. from a config.Watcher reload) without rebuilding the logger.
func NewLogger(level string) (*zap.Logger, zap.AtomicLevel, error) {
	var zlevel zapcore.Level
	if err := zlevel.UnmarshalText([]byte(level)); err != nil {
		zlevel = zapcore.InfoLevel
	}
	atom := zap.NewAtomicLevelAt(zlevel)

	cfg := zap.Config{
		Level:            atom,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	return logger, atom, err
}
