package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/goliatone/go-lightning-webhooks/core"
)

func signHexHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_AcceptsOwnSignature(t *testing.T) {
	bodies := [][]byte{
		[]byte(``),
		[]byte(`{"type":"InvoiceSettled"}`),
		[]byte("{\n  \"type\": \"InvoiceCreated\",\n  \"storeId\": \"s\"\n}"),
	}
	secrets := [][]byte{[]byte("Y6Tio3rXRT4dGqpk43GvBPK9fHQ"), []byte("x"), {}}
	for _, body := range bodies {
		for _, secret := range secrets {
			header := "sha256=" + signHexHMAC(string(secret), body)
			if !VerifySignature(body, secret, header) {
				t.Fatalf("expected signature to verify for body %q", body)
			}
			if !VerifySignature(body, secret, strings.TrimPrefix(header, "sha256=")) {
				t.Fatalf("expected bare hex signature to verify for body %q", body)
			}
			if Sign(body, secret) != header {
				t.Fatalf("expected Sign to match reference header")
			}
		}
	}
}

func TestVerifySignature_RejectsSingleByteMutation(t *testing.T) {
	secret := []byte("Y6Tio3rXRT4dGqpk43GvBPK9fHQ")
	body := []byte(`{"deliveryId":"WZbyGsmWGZvYjRsYCH7Vmt","type":"InvoiceSettled","timestamp":1683049755}`)
	header := Sign(body, secret)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		if VerifySignature(mutated, secret, header) {
			t.Fatalf("expected mutation at byte %d to fail verification", i)
		}
	}
}

func TestVerifySignature_RejectsUnrelatedDigestAndCase(t *testing.T) {
	secret := []byte("secret")
	body := []byte(`{"type":"InvoiceSettled"}`)
	header := Sign(body, secret)

	unrelated := "sha256=" + strings.Repeat("ab", sha256.Size)
	if VerifySignature(body, secret, unrelated) {
		t.Fatalf("expected unrelated digest to fail")
	}
	if VerifySignature(body, secret, strings.ToUpper(header)) {
		t.Fatalf("expected uppercase digest to fail exact comparison")
	}
	if VerifySignature(body, []byte("other"), header) {
		t.Fatalf("expected different secret to fail")
	}
}

func TestHeaderHMACVerifier_LooksUpHeaderCaseInsensitively(t *testing.T) {
	body := []byte(`{"type":"InvoiceSettled"}`)
	verifier := HeaderHMACVerifier{Header: "BTCPay-Sig", Secret: []byte("secret")}

	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"Btcpay-Sig": Sign(body, []byte("secret"))},
		Body:    body,
	})
	if err != nil {
		t.Fatalf("expected verification success, got %v", err)
	}
	if err := verifier.Verify(context.Background(), core.InboundRequest{Body: body}); err == nil {
		t.Fatalf("expected missing header to fail")
	}
}

func TestTokenVerifier_HeaderOrQuery(t *testing.T) {
	verifier := TokenVerifier{Header: "X-Webhook-Token", Query: "token", Token: "shared"}

	if err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"X-Webhook-Token": "shared"},
	}); err != nil {
		t.Fatalf("expected header token to verify: %v", err)
	}
	if err := verifier.Verify(context.Background(), core.InboundRequest{
		Query: map[string]string{"token": "shared"},
	}); err != nil {
		t.Fatalf("expected query token to verify: %v", err)
	}
	if err := verifier.Verify(context.Background(), core.InboundRequest{
		Query: map[string]string{"token": "wrong"},
	}); err == nil {
		t.Fatalf("expected mismatched token to fail")
	}
	if err := verifier.Verify(context.Background(), core.InboundRequest{}); err == nil {
		t.Fatalf("expected missing token to fail")
	}
}
