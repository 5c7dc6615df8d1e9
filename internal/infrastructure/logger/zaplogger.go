package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger логгер на основе zap с printf-подобным интерфейсом
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger создает новый логгер. При debugEnabled выводятся отладочные сообщения.
func NewZapLogger(debugEnabled bool) (*ZapLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debugEnabled {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: l.Sugar()}, nil
}

// Wrap оборачивает готовый *zap.Logger
func Wrap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

// Info логирует информационное сообщение
func (l *ZapLogger) Info(msg string, args ...interface{}) {
	l.sugar.Infof(msg, args...)
}

// Error логирует сообщение об ошибке
func (l *ZapLogger) Error(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
}

// Debug логирует отладочное сообщение
func (l *ZapLogger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugf(msg, args...)
}

// Sync сбрасывает буферы; вызывать перед выходом
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
