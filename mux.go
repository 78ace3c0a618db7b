package lightning

import (
	"net/http"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-lightning-webhooks/access"
	"github.com/goliatone/go-lightning-webhooks/btcpay"
	"github.com/goliatone/go-lightning-webhooks/core"
	"github.com/goliatone/go-lightning-webhooks/inbound"
	"github.com/goliatone/go-lightning-webhooks/lnbits"
	"github.com/goliatone/go-lightning-webhooks/transport"
	"github.com/goliatone/go-lightning-webhooks/webhooks"
)

const (
	HealthPath         = "/health"
	LNbitsTokenHeader  = "X-Webhook-Token"
	LNbitsTokenQuery   = "token"
	requestTimeoutBody = `{"error":"request timed out"}`
)

// Dependencies are the collaborators shared by both webhook routes. Grants
// is required; the rest are optional.
type Dependencies struct {
	Grants gocmd.Commander[access.GrantMessage]
	// Claims dedupes redelivered webhooks. Nil disables dedupe.
	Claims   core.ClaimStore
	Invoices btcpay.InvoiceLookup
	Logger   core.Logger
	Metrics  core.MetricsRecorder
}

// NewMux builds the HTTP surface for cfg.
func NewMux(cfg core.Config, deps Dependencies) (*http.ServeMux, error) {
	if deps.Grants == nil {
		return nil, core.ConfigurationFailure("grants", "lightning: a grant command is required")
	}
	logger := core.EnsureLogger(deps.Logger)
	mux := http.NewServeMux()
	mux.Handle(HealthPath, webhooks.HealthHandler())

	if cfg.BTCPay.Enabled {
		secret := strings.TrimSpace(cfg.BTCPay.WebhookSecret)
		if secret == "" {
			return nil, core.ConfigurationFailure("btcpay.webhook_secret", "btcpay.webhook_secret is required when the btcpay route is enabled")
		}
		dispatcher := newDispatcher(btcpay.ProviderID, cfg, deps, logger)
		if err := btcpay.Register(dispatcher, btcpay.SettlementHandler{
			Granter:  deps.Grants,
			Invoices: deps.Invoices,
			Logger:   logger,
		}); err != nil {
			return nil, err
		}
		auth := webhooks.RequireSignature(btcpay.ProviderID, btcpay.SignatureHeader, []byte(secret), logger)
		auth.MaxBodyBytes = cfg.Server.MaxBodyBytes
		processor := newProcessor(btcpay.ProviderID, btcpay.NewDecoder(), dispatcher, cfg, deps, logger)
		mux.Handle(routePath(cfg.BTCPay.WebhookPath, "/btcpay/webhook"), withTimeout(auth.Wrap(processor), cfg.Server.RequestTimeout()))
	}

	if cfg.LNbits.Enabled {
		dispatcher := newDispatcher(lnbits.ProviderID, cfg, deps, logger)
		if err := lnbits.Register(dispatcher, lnbits.PaymentHandler{
			Granter: deps.Grants,
			Logger:  logger,
		}); err != nil {
			return nil, err
		}
		var handler http.Handler = newProcessor(lnbits.ProviderID, lnbits.NewDecoder(), dispatcher, cfg, deps, logger)
		if token := strings.TrimSpace(cfg.LNbits.WebhookToken); token != "" {
			handler = webhooks.Authenticator{
				ProviderID: lnbits.ProviderID,
				Verifier: webhooks.TokenVerifier{
					Header: LNbitsTokenHeader,
					Query:  LNbitsTokenQuery,
					Token:  token,
				},
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				Logger:       logger,
			}.Wrap(handler)
		}
		mux.Handle(routePath(cfg.LNbits.WebhookPath, "/lnbits/webhook"), withTimeout(handler, cfg.Server.RequestTimeout()))
	}
	return mux, nil
}

// NewInvoiceLookup returns nil when the BTCPay API is not configured. A
// positive cache TTL puts the client behind a read-through cache.
func NewInvoiceLookup(cfg core.BTCPayConfig, doer transport.HTTPDoer) (btcpay.InvoiceLookup, error) {
	if !cfg.InvoiceLookupEnabled() {
		return nil, nil
	}
	client := btcpay.NewInvoiceClient(cfg.Host, cfg.APIKey, doer)
	ttl := cfg.InvoiceCacheTTL()
	if ttl <= 0 {
		return client, nil
	}
	cacheService, err := btcpay.NewInvoiceCache(ttl)
	if err != nil {
		return nil, err
	}
	return btcpay.NewCachedInvoiceClient(client, cacheService)
}

func newDispatcher(providerID string, cfg core.Config, deps Dependencies, logger core.Logger) *inbound.Dispatcher {
	dispatcher := inbound.NewDispatcher(providerID, deps.Claims, logger)
	if ttl := cfg.Delivery.ClaimTTL(); ttl > 0 {
		dispatcher.ClaimTTL = ttl
	}
	return dispatcher
}

func newProcessor(
	providerID string,
	decoder core.Decoder,
	dispatcher *inbound.Dispatcher,
	cfg core.Config,
	deps Dependencies,
	logger core.Logger,
) *webhooks.Processor {
	processor := webhooks.NewProcessor(providerID, decoder, dispatcher, logger)
	processor.MaxBodyBytes = cfg.Server.MaxBodyBytes
	if deps.Metrics != nil {
		processor.Metrics = deps.Metrics
	}
	return processor
}

func withTimeout(handler http.Handler, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		return handler
	}
	return http.TimeoutHandler(handler, timeout, requestTimeoutBody)
}

func routePath(path string, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
