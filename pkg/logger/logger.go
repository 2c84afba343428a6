package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Глобальный экземпляр логгера
var (
	globalLogger *zap.Logger
	mu           sync.RWMutex
)

// Options настройки файлового логгера
type Options struct {
	Level    string // debug, info, warn, error
	File     string // читаемый лог
	JSONFile string // JSON лог (его же читает панель логов UI)
	Truncate bool   // очищать JSON лог при запуске
	Console  bool   // дублировать в stderr (только для сервера, TUI занимает терминал)
}

// Init инициализирует глобальный логгер
func Init(opts Options) error {
	l, err := newLogger(opts)
	if err != nil {
		return err
	}

	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// GetLogger возвращает глобальный экземпляр логгера.
// До вызова Init возвращается пустой логгер.
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Sync сбрасывает буферы логгера
func Sync() {
	_ = GetLogger().Sync()
}

// Вспомогательные функции для удобства использования
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// ParseLevel переводит строку в уровень zap, неизвестное значение -> info
func ParseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// newLogger создает новый экземпляр логгера
func newLogger(opts Options) (*zap.Logger, error) {
	// Конфигурация энкодера
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("02.01.2006 - 15:04:05.000000000Z07:00")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	level := ParseLevel(opts.Level)
	var cores []zapcore.Core

	if opts.File != "" {
		readableFile, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия файла лога %s: %w", opts.File, err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(readableFile), level))
	}

	if opts.JSONFile != "" {
		flags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
		if opts.Truncate {
			// Очистка логов при перезапуске
			flags = os.O_TRUNC | os.O_CREATE | os.O_WRONLY
		}
		jsonFile, err := os.OpenFile(opts.JSONFile, flags, 0644)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия файла лога %s: %w", opts.JSONFile, err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(jsonFile), level))
	}

	if opts.Console {
		colorConfig := encoderConfig
		colorConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(colorConfig), zapcore.AddSync(os.Stderr), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)), nil
}
