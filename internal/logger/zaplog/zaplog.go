// Package zaplog provides the zap-backed implementation of the logger
// contract.
package zaplog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/schans/dirindex/internal/logger"
)

// Adapter wraps *zap.Logger behind the logger.Logger interface.
type Adapter struct {
	L *zap.Logger
}

// NewAdapter skips one caller frame so log lines point at the call site,
// not this file.
func NewAdapter(l *zap.Logger) Adapter {
	return Adapter{L: l.WithOptions(zap.AddCallerSkip(1))}
}

func (a Adapter) Named(name string) logger.Logger {
	return Adapter{L: a.L.Named(name)}
}

func (a Adapter) With(fields ...logger.Field) logger.Logger {
	return Adapter{L: a.L.With(toZap(fields)...)}
}

func (a Adapter) Debug(msg string, fields ...logger.Field) {
	if ce := a.L.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(toZap(fields)...)
	}
}

func (a Adapter) Info(msg string, fields ...logger.Field) {
	if ce := a.L.Check(zap.InfoLevel, msg); ce != nil {
		ce.Write(toZap(fields)...)
	}
}

func (a Adapter) Warn(msg string, fields ...logger.Field) {
	if ce := a.L.Check(zap.WarnLevel, msg); ce != nil {
		ce.Write(toZap(fields)...)
	}
}

func (a Adapter) Error(msg string, fields ...logger.Field) {
	if ce := a.L.Check(zap.ErrorLevel, msg); ce != nil {
		ce.Write(toZap(fields)...)
	}
}

func toZap(fs []logger.Field) []zap.Field {
	if len(fs) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, zap.Any(f.Key, f.Val))
	}
	return out
}

// New builds a logger.Logger from the configuration.
func New(cfg logger.Config) (logger.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encCfg.NameKey = "component"

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var ws zapcore.WriteSyncer
	switch cfg.Mode {
	case "file":
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		})
	default:
		ws = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, ws, level)
	return NewAdapter(zap.New(core, zap.AddCaller())), nil
}
