package util

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger builds the console logger shared by the CLI and the dev backend.
// Unknown levels fall back to info.
func NewZapLogger(level string) *zap.SugaredLogger {
	stderr := zapcore.AddSync(os.Stderr)

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	atomicLvl := zap.NewAtomicLevelAt(lvl)

	developmentCfg := zap.NewDevelopmentEncoderConfig()
	developmentCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(developmentCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, stderr, atomicLvl),
	)

	return zap.New(core).Sugar()
}
