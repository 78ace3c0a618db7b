package gologger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

const levelTrace = slog.Level(-8)

// SlogLogger adapts a slog.Logger to glog.Logger. Context passed through
// WithContext is forwarded to the slog handler.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// NewSlogLogger writes JSON records to w at or above level. Unknown level
// names fall back to info.
func NewSlogLogger(w io.Writer, level string) *SlogLogger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &SlogLogger{logger: slog.New(handler), ctx: context.Background()}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return levelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) Trace(msg string, args ...any) { l.log(levelTrace, msg, args...) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// Fatal logs at error level with fatal=true. It does not exit; the caller
// owns process shutdown.
func (l *SlogLogger) Fatal(msg string, args ...any) {
	l.log(slog.LevelError, msg, append(args, "fatal", true)...)
}

func (l *SlogLogger) WithContext(ctx context.Context) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &SlogLogger{logger: l.logger, ctx: ctx}
}

// GetLogger returns a child logger tagged with the component name.
func (l *SlogLogger) GetLogger(name string) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &SlogLogger{logger: l.logger.With("logger", name), ctx: l.ctx}
}

func (l *SlogLogger) log(level slog.Level, msg string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, msg, normalizeArgs(args)...)
}

// normalizeArgs pairs a dangling trailing value under "arg" instead of the
// slog default of !BADKEY.
func normalizeArgs(args []any) []any {
	if len(args)%2 == 0 {
		return args
	}
	out := make([]any, 0, len(args)+1)
	out = append(out, args[:len(args)-1]...)
	return append(out, "arg", fmt.Sprint(args[len(args)-1]))
}

var (
	_ glog.Logger         = (*SlogLogger)(nil)
	_ glog.LoggerProvider = (*SlogLogger)(nil)
)
