package core

import (
	"context"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// EnsureLogger returns logger, or a no-op logger when nil.
func EnsureLogger(logger Logger) Logger {
	if logger == nil {
		return glog.Nop()
	}
	return logger
}

// Log emits message with fields on logger. A FieldsLogger receives the fields
// through WithFields; every logger also receives them as sorted key/value
// arguments.
func Log(ctx context.Context, logger Logger, level LogLevel, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(CloneFields(fields))
	}
	args := FlattenFields(fields)
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(level)))) {
	case LogLevelDebug:
		logger.Debug(message, args...)
	case LogLevelWarn:
		logger.Warn(message, args...)
	case LogLevelError:
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func CloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func FlattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
