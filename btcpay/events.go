package btcpay

import (
	"strings"

	"github.com/goliatone/go-lightning-webhooks/core"
)

const ProviderID = "btcpay"

const (
	EventInvoiceSettled         = "InvoiceSettled"
	EventInvoicePaymentSettled  = "InvoicePaymentSettled"
	EventInvoiceReceivedPayment = "InvoiceReceivedPayment"
	EventInvoiceExpired         = "InvoiceExpired"
	EventInvoiceInvalid         = "InvoiceInvalid"
	EventInvoiceProcessing      = "InvoiceProcessing"
	EventInvoiceCreated         = "InvoiceCreated"
)

// KnownEventTypes lists every tag with a dedicated variant.
var KnownEventTypes = []string{
	EventInvoiceSettled,
	EventInvoicePaymentSettled,
	EventInvoiceReceivedPayment,
	EventInvoiceExpired,
	EventInvoiceInvalid,
	EventInvoiceProcessing,
	EventInvoiceCreated,
}

// InvoiceEvent holds the fields shared by every invoice webhook. The sender
// does not guarantee any of them.
type InvoiceEvent struct {
	DeliveryID         *string          `json:"deliveryId,omitempty"`
	WebhookID          *string          `json:"webhookId,omitempty"`
	OriginalDeliveryID *string          `json:"originalDeliveryId,omitempty"`
	IsRedelivery       *bool            `json:"isRedelivery,omitempty"`
	Type               *string          `json:"type,omitempty"`
	Timestamp          *core.Timestamp  `json:"timestamp,omitempty"`
	StoreID            *string          `json:"storeId,omitempty"`
	InvoiceID          *string          `json:"invoiceId,omitempty"`
	Metadata           *InvoiceMetadata `json:"metadata,omitempty"`
}

func (InvoiceEvent) Provider() string {
	return ProviderID
}

// DeliveryKey prefers originalDeliveryId so redeliveries share the key of
// the first attempt.
func (e InvoiceEvent) DeliveryKey() string {
	if key := value(e.OriginalDeliveryID); key != "" {
		return key
	}
	return value(e.DeliveryID)
}

func (e InvoiceEvent) Store() string {
	return value(e.StoreID)
}

func (e InvoiceEvent) Invoice() string {
	return value(e.InvoiceID)
}

type InvoiceSettledEvent struct {
	InvoiceEvent
	ManuallyMarked *bool `json:"manuallyMarked,omitempty"`
	OverPaid       *bool `json:"overPaid,omitempty"`
}

func (InvoiceSettledEvent) EventType() string { return EventInvoiceSettled }

type InvoicePaymentSettledEvent struct {
	InvoiceEvent
	AfterExpiration *bool    `json:"afterExpiration,omitempty"`
	PaymentMethod   *string  `json:"paymentMethod,omitempty"`
	Payment         *Payment `json:"payment,omitempty"`
}

func (InvoicePaymentSettledEvent) EventType() string { return EventInvoicePaymentSettled }

type InvoiceReceivedPaymentEvent struct {
	InvoiceEvent
	AfterExpiration *bool    `json:"afterExpiration,omitempty"`
	PaymentMethod   *string  `json:"paymentMethod,omitempty"`
	Payment         *Payment `json:"payment,omitempty"`
}

func (InvoiceReceivedPaymentEvent) EventType() string { return EventInvoiceReceivedPayment }

type InvoiceExpiredEvent struct {
	InvoiceEvent
	PartiallyPaid  *bool `json:"partiallyPaid,omitempty"`
	ManuallyMarked *bool `json:"manuallyMarked,omitempty"`
}

func (InvoiceExpiredEvent) EventType() string { return EventInvoiceExpired }

type InvoiceInvalidEvent struct {
	InvoiceEvent
	ManuallyMarked *bool `json:"manuallyMarked,omitempty"`
}

func (InvoiceInvalidEvent) EventType() string { return EventInvoiceInvalid }

type InvoiceProcessingEvent struct {
	InvoiceEvent
	OverPaid *bool `json:"overPaid,omitempty"`
}

func (InvoiceProcessingEvent) EventType() string { return EventInvoiceProcessing }

type InvoiceCreatedEvent struct {
	InvoiceEvent
}

func (InvoiceCreatedEvent) EventType() string { return EventInvoiceCreated }

// Unsupported is any valid JSON document without a recognized tag, or whose
// tagged record did not fit its variant. Tag holds the raw "type" string when
// one was present.
type Unsupported struct {
	Tag string
	Raw core.Value
}

func (Unsupported) EventType() string { return core.EventTypeUnsupported }

func (Unsupported) Provider() string { return ProviderID }

func (u Unsupported) MarshalJSON() ([]byte, error) {
	return u.Raw.MarshalJSON()
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

var (
	_ core.Event         = InvoiceSettledEvent{}
	_ core.Event         = InvoicePaymentSettledEvent{}
	_ core.Event         = InvoiceReceivedPaymentEvent{}
	_ core.Event         = InvoiceExpiredEvent{}
	_ core.Event         = InvoiceInvalidEvent{}
	_ core.Event         = InvoiceProcessingEvent{}
	_ core.Event         = InvoiceCreatedEvent{}
	_ core.Event         = Unsupported{}
	_ core.DeliveryKeyer = InvoiceSettledEvent{}
)
