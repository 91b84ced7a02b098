// Package logger builds the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trckr/apiserver/config"
)

// New returns a console logger in development and a JSON logger otherwise.
func New(cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsDev() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.CallerKey = "file"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", "trckr"),
		zap.String("version", cfg.Version),
	), nil
}
