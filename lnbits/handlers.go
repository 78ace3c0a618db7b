package lnbits

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

// PaymentHandler grants access for a completed payment whose extra data
// names an identity and a content item.
type PaymentHandler struct {
	Granter gocmd.Commander[access.GrantMessage]
	Logger  core.Logger
}

func (h PaymentHandler) Handle(ctx context.Context, event PaymentEvent) error {
	logger := core.EnsureLogger(h.Logger)
	fields := map[string]any{
		"provider":     ProviderID,
		"event_type":   event.EventType(),
		"payment_hash": event.PaymentHash,
		"wallet_id":    event.WalletID,
		"amount_msat":  event.Amount,
	}
	if h.Granter == nil {
		return core.InternalFailure("lnbits: payment handler requires a granter", fields)
	}
	if event.Pending {
		core.Log(ctx, logger, core.LogLevelInfo, "payment still pending", fields)
		return nil
	}

	pubkey, _ := event.Extra.GetString(PubkeyKey)
	contentID, _ := event.Extra.GetString(ContentIDKey)
	if pubkey == "" || contentID == "" {
		core.Log(ctx, logger, core.LogLevelWarn, "payment carries no access keys", fields)
		return nil
	}

	return h.Granter.Execute(ctx, access.GrantMessage{
		Provider:  ProviderID,
		Pubkey:    pubkey,
		ContentID: contentID,
		Reference: event.PaymentHash,
	})
}

func Register(dispatcher *inbound.Dispatcher, payments PaymentHandler) error {
	return inbound.On(dispatcher, EventPayment, payments.Handle)
}
