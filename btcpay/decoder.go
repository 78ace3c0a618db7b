package btcpay

import (
	"encoding/json"

	"github.com/goliatone/go-lightning-webhooks/core"
)

// SignatureHeader carries "sha256=<hex hmac>" over the raw body.
const SignatureHeader = "BTCPay-Sig"

type Decoder struct{}

func NewDecoder() Decoder {
	return Decoder{}
}

// Decode fails only for malformed JSON. Unknown, missing or non-string tags
// and records that do not fit their variant decode to Unsupported.
func (Decoder) Decode(body []byte) (core.Event, error) {
	parsed, err := core.ParseValue(body)
	if err != nil {
		return nil, err
	}
	unsupported := Unsupported{Raw: parsed}

	object, ok := parsed.AsObject()
	if !ok {
		return unsupported, nil
	}
	tag, ok := object["type"].AsString()
	if !ok {
		return unsupported, nil
	}
	unsupported.Tag = tag

	var event core.Event
	switch tag {
	case EventInvoiceSettled:
		event, err = decodeVariant[InvoiceSettledEvent](body)
	case EventInvoicePaymentSettled:
		event, err = decodeVariant[InvoicePaymentSettledEvent](body)
	case EventInvoiceReceivedPayment:
		event, err = decodeVariant[InvoiceReceivedPaymentEvent](body)
	case EventInvoiceExpired:
		event, err = decodeVariant[InvoiceExpiredEvent](body)
	case EventInvoiceInvalid:
		event, err = decodeVariant[InvoiceInvalidEvent](body)
	case EventInvoiceProcessing:
		event, err = decodeVariant[InvoiceProcessingEvent](body)
	case EventInvoiceCreated:
		event, err = decodeVariant[InvoiceCreatedEvent](body)
	default:
		return unsupported, nil
	}
	if err != nil {
		return unsupported, nil
	}
	return event, nil
}

func decodeVariant[T core.Event](body []byte) (core.Event, error) {
	var event T
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return event, nil
}

var _ core.Decoder = Decoder{}
