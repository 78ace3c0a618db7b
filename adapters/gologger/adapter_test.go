package gologger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("lightning-webhooks", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("lightning-webhooks", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("lightning-webhooks", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestSlogLoggerWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(&buf, "info")

	logger.Debug("hidden", "k", "v")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered at info level, got %q", buf.String())
	}

	logger.GetLogger("btcpay").WithContext(context.Background()).Info("webhook processed", "provider", "btcpay", "status", 200)
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record %q: %v", buf.String(), err)
	}
	if record["msg"] != "webhook processed" || record["level"] != "INFO" {
		t.Fatalf("unexpected record %v", record)
	}
	if record["provider"] != "btcpay" || record["logger"] != "btcpay" {
		t.Fatalf("expected provider and logger attributes, got %v", record)
	}
	if record["status"] != float64(200) {
		t.Fatalf("expected numeric status, got %v", record["status"])
	}
}

func TestSlogLoggerPairsDanglingArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(&buf, "debug")
	logger.Warn("odd args", "k", "v", "tail")
	if !strings.Contains(buf.String(), `"arg":"tail"`) {
		t.Fatalf("expected dangling arg to be paired, got %q", buf.String())
	}

	buf.Reset()
	logger.Fatal("stopping")
	if !strings.Contains(buf.String(), `"fatal":true`) || !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Fatalf("expected fatal marker at error level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel(" WARNING ").String() != "WARN" {
		t.Fatalf("expected warn level")
	}
	if ParseLevel("nonsense").String() != "INFO" {
		t.Fatalf("expected info fallback")
	}
	if ParseLevel("trace") >= ParseLevel("debug") {
		t.Fatalf("expected trace below debug")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type capturingLogger struct {
	id string
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Info(string, ...any)  {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
