package btcpay

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-lightning-webhooks/core"
)

type PaymentStatus string

const (
	PaymentStatusInvalid    PaymentStatus = "Invalid"
	PaymentStatusProcessing PaymentStatus = "Processing"
	PaymentStatusSettled    PaymentStatus = "Settled"
)

// ParsePaymentStatus maps unknown or empty values to Invalid.
func ParsePaymentStatus(value string) PaymentStatus {
	switch PaymentStatus(value) {
	case PaymentStatusProcessing:
		return PaymentStatusProcessing
	case PaymentStatusSettled:
		return PaymentStatusSettled
	default:
		return PaymentStatusInvalid
	}
}

func (s PaymentStatus) String() string {
	return string(ParsePaymentStatus(string(s)))
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("btcpay: payment status must be a string: %w", err)
	}
	if raw == nil {
		*s = PaymentStatusInvalid
		return nil
	}
	*s = ParsePaymentStatus(*raw)
	return nil
}

func (s PaymentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

type Payment struct {
	ID           *string         `json:"id,omitempty"`
	ReceivedDate *core.Timestamp `json:"receivedDate,omitempty"`
	// Value and Fee are decimal strings in the payment method's unit.
	Value       *string        `json:"value,omitempty"`
	Fee         *string        `json:"fee,omitempty"`
	Status      *PaymentStatus `json:"status,omitempty"`
	Destination *string        `json:"destination,omitempty"`
}

// StatusValue returns the payment status, Invalid when unset.
func (p Payment) StatusValue() PaymentStatus {
	if p.Status == nil {
		return PaymentStatusInvalid
	}
	return ParsePaymentStatus(string(*p.Status))
}
