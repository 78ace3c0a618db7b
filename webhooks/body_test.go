package webhooks

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCaptureBody_RestoresReplayableBody(t *testing.T) {
	payload := "{\n  \"type\": \"InvoiceSettled\"\n}"
	req := httptest.NewRequest(http.MethodPost, "/btcpay/webhook", strings.NewReader(payload))

	captured, err := CaptureBody(req, 0)
	if err != nil {
		t.Fatalf("capture body: %v", err)
	}
	if string(captured) != payload {
		t.Fatalf("expected captured bytes to match payload")
	}

	first, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read restored body: %v", err)
	}
	if !bytes.Equal(first, captured) {
		t.Fatalf("expected restored body to replay captured bytes")
	}
	again, err := req.GetBody()
	if err != nil {
		t.Fatalf("get body: %v", err)
	}
	second, _ := io.ReadAll(again)
	if !bytes.Equal(second, captured) {
		t.Fatalf("expected GetBody to replay captured bytes")
	}
	if req.ContentLength != int64(len(payload)) {
		t.Fatalf("expected content length %d, got %d", len(payload), req.ContentLength)
	}
}

func TestCaptureBody_RejectsOversizedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 11)))
	if _, err := CaptureBody(req, 10); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestCaptureBody_ReadFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Body = io.NopCloser(failingReader{})
	if _, err := CaptureBody(req, 0); err == nil {
		t.Fatalf("expected read failure to surface")
	}
}

func TestNewInboundRequest_FlattensHeadersAndQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/lnbits/webhook?token=abc", nil)
	req.Header.Set("X-Request-Id", "req-1")
	inbound := NewInboundRequest("lnbits", req, []byte(`{}`))

	if inbound.Query["token"] != "abc" {
		t.Fatalf("expected query token, got %#v", inbound.Query)
	}
	if inbound.Path != "/lnbits/webhook" {
		t.Fatalf("expected path, got %q", inbound.Path)
	}
	if inbound.Metadata["request_id"] != "req-1" {
		t.Fatalf("expected request id metadata")
	}
}
