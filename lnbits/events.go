package lnbits

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-lightning-webhooks/core"
)

const ProviderID = "lnbits"

const EventPayment = "Payment"

// PaymentEvent is sent for a wallet payment, first while pending and again
// once it settles. Amounts are millisatoshi counters; times are unix seconds
// and may carry a fraction.
type PaymentEvent struct {
	CheckingID  string         `json:"checking_id"`
	Pending     bool           `json:"pending"`
	Amount      uint64         `json:"amount"`
	Fee         uint64         `json:"fee"`
	Memo        string         `json:"memo"`
	Time        core.Timestamp `json:"time"`
	Bolt11      string         `json:"bolt11"`
	Preimage    string         `json:"preimage"`
	PaymentHash string         `json:"payment_hash"`
	Expiry      core.Timestamp `json:"expiry"`
	// Extra is application data attached when the invoice was created.
	Extra    core.Value `json:"extra"`
	WalletID string     `json:"wallet_id"`
	Webhook  string     `json:"webhook"`
	// WebhookStatus is null until LNbits records a delivery outcome. Older
	// releases send a numeric status code, newer ones a string.
	WebhookStatus *core.Value `json:"webhook_status"`
}

func (PaymentEvent) EventType() string { return EventPayment }

func (PaymentEvent) Provider() string { return ProviderID }

// DeliveryKey is empty while the payment is pending. A pending notice has no
// side effect and must not hold the key the settled notice will claim.
func (e PaymentEvent) DeliveryKey() string {
	if e.Pending {
		return ""
	}
	return strings.TrimSpace(e.PaymentHash)
}

// WebhookStatusText renders WebhookStatus as text, empty when null.
func (e PaymentEvent) WebhookStatusText() string {
	if e.WebhookStatus == nil {
		return ""
	}
	switch typed := e.WebhookStatus.Raw().(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

// Unsupported is any valid JSON document that is not a PaymentEvent.
// Reason names the first field that failed to match.
type Unsupported struct {
	Reason string
	Raw    core.Value
}

func (Unsupported) EventType() string { return core.EventTypeUnsupported }

func (Unsupported) Provider() string { return ProviderID }

func (u Unsupported) MarshalJSON() ([]byte, error) {
	return u.Raw.MarshalJSON()
}

var (
	_ core.Event         = PaymentEvent{}
	_ core.Event         = Unsupported{}
	_ core.DeliveryKeyer = PaymentEvent{}
)
