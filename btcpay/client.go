package btcpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-lightning-webhooks/core"
	"github.com/goliatone/go-lightning-webhooks/transport"
)

const (
	defaultInvoiceLookupTimeout          = 10 * time.Second
	defaultInvoiceResponseLimit    int64 = 1 << 20
	invoiceCacheKeyPrefix                = "lightning-webhooks::btcpay_invoice::v1"
)

// InvoiceData is the subset of the Greenfield invoice record used to enrich
// webhook events.
type InvoiceData struct {
	ID                   *string          `json:"id,omitempty"`
	StoreID              *string          `json:"storeId,omitempty"`
	Amount               *string          `json:"amount,omitempty"`
	Currency             *string          `json:"currency,omitempty"`
	Type                 *string          `json:"type,omitempty"`
	CheckoutLink         *string          `json:"checkoutLink,omitempty"`
	Status               *string          `json:"status,omitempty"`
	AdditionalStatus     *string          `json:"additionalStatus,omitempty"`
	CreatedTime          *core.Timestamp  `json:"createdTime,omitempty"`
	ExpirationTime       *core.Timestamp  `json:"expirationTime,omitempty"`
	MonitoringExpiration *core.Timestamp  `json:"monitoringExpiration,omitempty"`
	Archived             *bool            `json:"archived,omitempty"`
	Metadata             *InvoiceMetadata `json:"metadata,omitempty"`
}

type InvoiceLookup interface {
	GetInvoice(ctx context.Context, storeID string, invoiceID string) (InvoiceData, error)
}

type InvoiceClient struct {
	Host      string
	APIKey    string
	Transport *transport.RESTAdapter
	Timeout   time.Duration
}

func NewInvoiceClient(host string, apiKey string, doer transport.HTTPDoer) *InvoiceClient {
	adapter := transport.NewRESTAdapter(doer)
	adapter.MaxResponseBodyBytes = defaultInvoiceResponseLimit
	adapter.DefaultHeaders["Accept"] = "application/json"
	return &InvoiceClient{
		Host:      strings.TrimRight(strings.TrimSpace(host), "/"),
		APIKey:    strings.TrimSpace(apiKey),
		Transport: adapter,
		Timeout:   defaultInvoiceLookupTimeout,
	}
}

// GetInvoice fetches GET {host}/api/v1/stores/{storeId}/invoices/{invoiceId}.
func (c *InvoiceClient) GetInvoice(ctx context.Context, storeID string, invoiceID string) (InvoiceData, error) {
	if c == nil || c.Transport == nil || c.Host == "" || c.APIKey == "" {
		return InvoiceData{}, core.InternalFailure("btcpay: invoice client is not configured", nil)
	}
	storeID = strings.TrimSpace(storeID)
	invoiceID = strings.TrimSpace(invoiceID)
	if storeID == "" || invoiceID == "" {
		return InvoiceData{}, core.MalformedInput(nil, "btcpay: store id and invoice id are required", nil)
	}
	metadata := map[string]any{"store_id": storeID, "invoice_id": invoiceID}

	endpoint := fmt.Sprintf("%s/api/v1/stores/%s/invoices/%s", c.Host, url.PathEscape(storeID), url.PathEscape(invoiceID))
	res, err := c.Transport.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		URL:     endpoint,
		Headers: map[string]string{"Authorization": "token " + c.APIKey},
		Timeout: c.Timeout,
	})
	if err != nil {
		return InvoiceData{}, core.UpstreamFailure(err, "btcpay: invoice lookup failed", metadata)
	}
	if res.StatusCode >= http.StatusBadRequest {
		metadata["status_code"] = res.StatusCode
		return InvoiceData{}, core.UpstreamFailure(nil, fmt.Sprintf("btcpay: invoice lookup returned status %d", res.StatusCode), metadata)
	}

	var invoice InvoiceData
	if err := json.Unmarshal(res.Body, &invoice); err != nil {
		return InvoiceData{}, core.UpstreamFailure(err, "btcpay: decode invoice response", metadata)
	}
	return invoice, nil
}

// CachedInvoiceClient serves repeated lookups for the same invoice from a
// read-through cache.
type CachedInvoiceClient struct {
	base  InvoiceLookup
	cache repositorycache.CacheService
}

func NewCachedInvoiceClient(base InvoiceLookup, cacheService repositorycache.CacheService) (*CachedInvoiceClient, error) {
	if base == nil {
		return nil, fmt.Errorf("btcpay: base invoice lookup is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("btcpay: invoice cache service is required")
	}
	return &CachedInvoiceClient{base: base, cache: cacheService}, nil
}

// NewInvoiceCache builds the default cache service with ttl.
func NewInvoiceCache(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

// InvoiceCacheKey returns lightning-webhooks::btcpay_invoice::v1::<store>::<invoice>
// with each segment path escaped.
func InvoiceCacheKey(storeID string, invoiceID string) string {
	return strings.Join([]string{
		invoiceCacheKeyPrefix,
		url.PathEscape(strings.TrimSpace(storeID)),
		url.PathEscape(strings.TrimSpace(invoiceID)),
	}, "::")
}

func (c *CachedInvoiceClient) GetInvoice(ctx context.Context, storeID string, invoiceID string) (InvoiceData, error) {
	if c == nil || c.base == nil || c.cache == nil {
		return InvoiceData{}, core.InternalFailure("btcpay: cached invoice client is not configured", nil)
	}
	return repositorycache.GetOrFetch(ctx, c.cache, InvoiceCacheKey(storeID, invoiceID), func(ctx context.Context) (InvoiceData, error) {
		return c.base.GetInvoice(ctx, storeID, invoiceID)
	})
}

var (
	_ InvoiceLookup = (*InvoiceClient)(nil)
	_ InvoiceLookup = (*CachedInvoiceClient)(nil)
)
