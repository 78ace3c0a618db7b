package webhooks

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-lightning-webhooks/core"
)

const DefaultMaxBodyBytes int64 = 1 << 20

var ErrBodyTooLarge = errors.New("webhooks: request body exceeds limit")

// CaptureBody reads the full request body and rewinds r so later readers see
// the same bytes from the start. The returned slice must not be modified.
func CaptureBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("webhooks: request is nil")
	}
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	if r.Body == nil || r.Body == http.NoBody {
		restoreBody(r, []byte{})
		return []byte{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("webhooks: read request body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	restoreBody(r, body)
	return body, nil
}

func restoreBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	r.ContentLength = int64(len(body))
}

// NewInboundRequest flattens r into the transport-neutral request shape. Only
// the first value of repeated headers and query parameters is kept.
func NewInboundRequest(providerID string, r *http.Request, body []byte) core.InboundRequest {
	req := core.InboundRequest{
		ProviderID: strings.TrimSpace(providerID),
		Headers:    flattenValues(r.Header),
		Body:       body,
		Metadata:   map[string]any{},
	}
	if r.URL != nil {
		req.Path = r.URL.Path
		req.Query = flattenValues(r.URL.Query())
	}
	if requestID := strings.TrimSpace(r.Header.Get("X-Request-Id")); requestID != "" {
		req.Metadata["request_id"] = requestID
	}
	return req
}

func flattenValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, list := range values {
		if len(list) == 0 {
			continue
		}
		out[key] = list[0]
	}
	return out
}
