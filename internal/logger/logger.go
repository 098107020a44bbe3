package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The level is shared with every logger already handed out, so Init
// can retune verbosity after packages have captured their loggers.
var atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

var sugar *zap.SugaredLogger

func GetLogger() *zap.SugaredLogger {
	if sugar == nil {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = atomicLevel
		logger, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		sugar = logger.Sugar()
	}
	return sugar
}

// Init sets the process-wide log level. Level names follow zap
// ("debug", "info", "warn", "error").
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	atomicLevel.SetLevel(lvl)
	return nil
}

func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
