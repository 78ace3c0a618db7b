package btcpay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-lightning-webhooks/core"
)

func newInvoiceServer(t *testing.T, calls *int32, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/api/v1/stores/store-1/invoices/inv-1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "token secret-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestInvoiceClient_GetInvoice(t *testing.T) {
	var calls int32
	server := newInvoiceServer(t, &calls, http.StatusOK, `{
		"id": "inv-1",
		"storeId": "store-1",
		"amount": "1000",
		"currency": "SATS",
		"status": "Settled",
		"createdTime": 1683049700,
		"metadata": {"posData": "{\"pubkey\":\"npub1\",\"content_id\":\"c1\"}"}
	}`)

	client := NewInvoiceClient(server.URL+"/", "secret-key", server.Client())
	invoice, err := client.GetInvoice(context.Background(), "store-1", "inv-1")
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if invoice.ID == nil || *invoice.ID != "inv-1" {
		t.Fatalf("unexpected invoice id %#v", invoice.ID)
	}
	pubkey, ok := invoice.Metadata.Lookup(PubkeyKey)
	if !ok || pubkey != "npub1" {
		t.Fatalf("expected pubkey from posData string, got %q", pubkey)
	}
}

func TestInvoiceClient_UpstreamErrorStatus(t *testing.T) {
	var calls int32
	server := newInvoiceServer(t, &calls, http.StatusNotFound, `{"code":"invoice-not-found"}`)

	client := NewInvoiceClient(server.URL, "secret-key", server.Client())
	_, err := client.GetInvoice(context.Background(), "store-1", "inv-1")
	if err == nil {
		t.Fatalf("expected upstream failure")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.WebhookErrorUpstreamFailed {
		t.Fatalf("expected %q, got %q", core.WebhookErrorUpstreamFailed, rich.TextCode)
	}
	if rich.Metadata["status_code"] != http.StatusNotFound {
		t.Fatalf("expected status metadata, got %#v", rich.Metadata)
	}
}

func TestInvoiceClient_InvalidJSONResponse(t *testing.T) {
	var calls int32
	server := newInvoiceServer(t, &calls, http.StatusOK, `<html>`)

	client := NewInvoiceClient(server.URL, "secret-key", server.Client())
	if _, err := client.GetInvoice(context.Background(), "store-1", "inv-1"); err == nil {
		t.Fatalf("expected decode failure")
	}
}

func TestInvoiceClient_RequiresIdentifiers(t *testing.T) {
	client := NewInvoiceClient("http://btcpay.test", "key", nil)
	_, err := client.GetInvoice(context.Background(), "", "inv-1")
	if core.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected bad input, got %v", err)
	}

	var unconfigured *InvoiceClient
	if _, err := unconfigured.GetInvoice(context.Background(), "s", "i"); err == nil {
		t.Fatalf("expected unconfigured client error")
	}
}

func TestCachedInvoiceClient_MissFetchThenHit(t *testing.T) {
	var calls int32
	server := newInvoiceServer(t, &calls, http.StatusOK, `{"id":"inv-1"}`)

	cacheService, err := NewInvoiceCache(time.Minute)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	cached, err := NewCachedInvoiceClient(NewInvoiceClient(server.URL, "secret-key", server.Client()), cacheService)
	if err != nil {
		t.Fatalf("new cached client: %v", err)
	}

	for i := 0; i < 3; i++ {
		invoice, err := cached.GetInvoice(context.Background(), "store-1", "inv-1")
		if err != nil {
			t.Fatalf("get invoice %d: %v", i, err)
		}
		if invoice.ID == nil || *invoice.ID != "inv-1" {
			t.Fatalf("unexpected invoice %#v", invoice)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}
}

func TestCachedInvoiceClient_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedInvoiceClient(nil, nil); err == nil {
		t.Fatalf("expected missing base error")
	}
	if _, err := NewCachedInvoiceClient(NewInvoiceClient("http://x", "k", nil), nil); err == nil {
		t.Fatalf("expected missing cache error")
	}
}

func TestInvoiceCacheKey_EscapesSegments(t *testing.T) {
	got := InvoiceCacheKey("store/1", "inv 1")
	want := "lightning-webhooks::btcpay_invoice::v1::store%2F1::inv%201"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
