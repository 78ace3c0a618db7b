package webhooks

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-lightning-webhooks/core"
)

// Authenticator rejects requests that fail verification before they reach
// the wrapped handler. Every rejection is a bare 401.
type Authenticator struct {
	ProviderID string
	// Header, when set, must be present with a visible ASCII value before
	// the body is read.
	Header string
	// RequireUTF8Body rejects bodies that are not valid UTF-8 text.
	RequireUTF8Body bool
	Verifier        Verifier
	MaxBodyBytes    int64
	Logger          core.Logger
}

// RequireSignature builds the authenticator for an HMAC-signed route.
func RequireSignature(providerID string, header string, secret []byte, logger core.Logger) Authenticator {
	return Authenticator{
		ProviderID:      providerID,
		Header:          header,
		RequireUTF8Body: true,
		Verifier:        HeaderHMACVerifier{Header: header, Secret: secret},
		Logger:          logger,
	}
}

func (a Authenticator) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := a.authenticate(r); reason != "" {
			a.reject(r.Context(), w, r, reason)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a Authenticator) authenticate(r *http.Request) string {
	header := strings.TrimSpace(a.Header)
	if header != "" {
		values := r.Header.Values(header)
		if len(values) == 0 {
			return "signature header missing"
		}
		if !isVisibleASCII(values[0]) {
			return "signature header malformed"
		}
	}

	body, err := CaptureBody(r, a.MaxBodyBytes)
	if err != nil {
		return "body capture failed"
	}
	if a.RequireUTF8Body && !utf8.Valid(body) {
		return "body is not utf-8"
	}
	if a.Verifier == nil {
		return "verifier not configured"
	}
	if err := a.Verifier.Verify(r.Context(), NewInboundRequest(a.ProviderID, r, body)); err != nil {
		return "verification failed"
	}
	return ""
}

func (a Authenticator) reject(ctx context.Context, w http.ResponseWriter, r *http.Request, reason string) {
	core.Log(ctx, a.Logger, core.LogLevelWarn, "webhook rejected", map[string]any{
		"provider": a.ProviderID,
		"path":     r.URL.Path,
		"reason":   reason,
		"headers":  core.RedactHeaders(flattenValues(r.Header)),
	})
	w.WriteHeader(http.StatusUnauthorized)
}

func isVisibleASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\t' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
