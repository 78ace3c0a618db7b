package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-lightning-webhooks/core"
)

const SignaturePrefix = "sha256="

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// VerifySignature reports whether header carries the lowercase hex
// HMAC-SHA256 of body under secret. A single leading "sha256=" is ignored.
func VerifySignature(body []byte, secret []byte, header string) bool {
	expected := hexHMAC(body, secret)
	actual := strings.TrimPrefix(header, SignaturePrefix)
	return hmac.Equal([]byte(expected), []byte(actual))
}

// Sign returns the header value a sender would attach to body.
func Sign(body []byte, secret []byte) string {
	return SignaturePrefix + hexHMAC(body, secret)
}

func hexHMAC(body []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HeaderHMACVerifier checks a hex HMAC-SHA256 signature carried in Header.
type HeaderHMACVerifier struct {
	Header string
	Secret []byte
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := headerValue(req.Headers, v.Header)
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	if len(v.Secret) == 0 {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	if !VerifySignature(req.Body, v.Secret, header) {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

// TokenVerifier compares a shared token taken from Header or, failing that,
// from the Query parameter.
type TokenVerifier struct {
	Header string
	Query  string
	Token  string
}

func (v TokenVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("webhooks: verification token is required")
	}
	actual := ""
	if strings.TrimSpace(v.Header) != "" {
		actual = headerValue(req.Headers, v.Header)
	}
	if actual == "" && strings.TrimSpace(v.Query) != "" {
		actual = strings.TrimSpace(req.Query[strings.TrimSpace(v.Query)])
	}
	if actual == "" {
		return fmt.Errorf("webhooks: verification token is missing")
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: verification token mismatch")
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
