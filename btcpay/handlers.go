package btcpay

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-lightning-webhooks/access"
	"github.com/goliatone/go-lightning-webhooks/core"
	"github.com/goliatone/go-lightning-webhooks/inbound"
)

const (
	PubkeyKey    = "pubkey"
	ContentIDKey = "content_id"
)

// SettlementHandler grants access once an invoice settles. The identity and
// content are read from metadata.posData, falling back to a lookup of the
// invoice when the webhook does not carry them.
type SettlementHandler struct {
	Granter  gocmd.Commander[access.GrantMessage]
	Invoices InvoiceLookup
	Logger   core.Logger
}

func (h SettlementHandler) Handle(ctx context.Context, event InvoiceSettledEvent) error {
	logger := core.EnsureLogger(h.Logger)
	fields := map[string]any{
		"provider":    ProviderID,
		"event_type":  event.EventType(),
		"store_id":    event.Store(),
		"invoice_id":  event.Invoice(),
		"delivery_id": value(event.DeliveryID),
	}
	if h.Granter == nil {
		return core.InternalFailure("btcpay: settlement handler requires a granter", fields)
	}

	pubkey, contentID := lookupGrantKeys(event.Metadata)
	if (pubkey == "" || contentID == "") && h.Invoices != nil && event.Store() != "" && event.Invoice() != "" {
		invoice, err := h.Invoices.GetInvoice(ctx, event.Store(), event.Invoice())
		if err != nil {
			return err
		}
		fetchedPubkey, fetchedContentID := lookupGrantKeys(invoice.Metadata)
		if pubkey == "" {
			pubkey = fetchedPubkey
		}
		if contentID == "" {
			contentID = fetchedContentID
		}
		fields["source"] = "invoice_lookup"
	}
	if pubkey == "" || contentID == "" {
		core.Log(ctx, logger, core.LogLevelWarn, "settled invoice carries no access keys", fields)
		return nil
	}

	return h.Granter.Execute(ctx, access.GrantMessage{
		Provider:  ProviderID,
		Pubkey:    pubkey,
		ContentID: contentID,
		Reference: event.Invoice(),
	})
}

// Register binds the settlement handler. Other variants have no side
// effects and are acknowledged by the dispatcher.
func Register(dispatcher *inbound.Dispatcher, settlement SettlementHandler) error {
	return inbound.On(dispatcher, EventInvoiceSettled, settlement.Handle)
}

func lookupGrantKeys(metadata *InvoiceMetadata) (string, string) {
	pubkey, _ := metadata.Lookup(PubkeyKey)
	contentID, _ := metadata.Lookup(ContentIDKey)
	return pubkey, contentID
}
