package lnbits

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goliatone/go-lightning-webhooks/core"
)

type Decoder struct{}

func NewDecoder() Decoder {
	return Decoder{}
}

// Decode fails only for malformed JSON.
func (Decoder) Decode(body []byte) (core.Event, error) {
	parsed, err := core.ParseValue(body)
	if err != nil {
		return nil, err
	}
	event, reason := matchPayment(parsed)
	if reason != "" {
		return Unsupported{Reason: reason, Raw: parsed}, nil
	}
	return event, nil
}

func matchPayment(parsed core.Value) (PaymentEvent, string) {
	object, ok := parsed.AsObject()
	if !ok {
		return PaymentEvent{}, "document is not an object"
	}
	var event PaymentEvent
	m := matcher{object: object}

	event.CheckingID = m.requireString("checking_id")
	event.Pending = m.requireBool("pending")
	event.Amount = m.requireUint("amount")
	event.Fee = m.requireUint("fee")
	event.Memo = m.requireString("memo")
	event.Time = m.requireTimestamp("time")
	event.Bolt11 = m.requireString("bolt11")
	event.Preimage = m.requireString("preimage")
	event.PaymentHash = m.requireString("payment_hash")
	event.Expiry = m.requireTimestamp("expiry")
	event.Extra = m.requireValue("extra")
	event.WalletID = m.requireString("wallet_id")
	event.Webhook = m.requireString("webhook")

	if status, ok := object["webhook_status"]; ok && !status.IsNull() {
		switch status.Kind() {
		case core.ValueKindString, core.ValueKindNumber:
			event.WebhookStatus = &status
		default:
			m.fail("webhook_status", "must be a string, number or null")
		}
	}
	return event, m.reason
}

type matcher struct {
	object map[string]core.Value
	reason string
}

func (m *matcher) fail(field string, problem string) {
	if m.reason == "" {
		m.reason = fmt.Sprintf("%s %s", field, problem)
	}
}

func (m *matcher) field(name string) (core.Value, bool) {
	value, ok := m.object[name]
	if !ok {
		m.fail(name, "is missing")
	}
	return value, ok
}

func (m *matcher) requireString(name string) string {
	value, ok := m.field(name)
	if !ok {
		return ""
	}
	text, ok := value.AsString()
	if !ok {
		m.fail(name, "must be a string")
	}
	return text
}

func (m *matcher) requireBool(name string) bool {
	value, ok := m.field(name)
	if !ok {
		return false
	}
	flag, ok := value.AsBool()
	if !ok {
		m.fail(name, "must be a boolean")
	}
	return flag
}

// requireUint accepts only integer literals that fit in 64 unsigned bits.
func (m *matcher) requireUint(name string) uint64 {
	value, ok := m.field(name)
	if !ok {
		return 0
	}
	number, ok := value.Raw().(json.Number)
	if !ok {
		m.fail(name, "must be a number")
		return 0
	}
	parsed, err := strconv.ParseUint(number.String(), 10, 64)
	if err != nil {
		m.fail(name, "must be an unsigned integer")
		return 0
	}
	return parsed
}

// requireTimestamp accepts integer and fractional literals.
func (m *matcher) requireTimestamp(name string) core.Timestamp {
	value, ok := m.field(name)
	if !ok {
		return core.Timestamp{}
	}
	number, ok := value.Raw().(json.Number)
	if !ok {
		m.fail(name, "must be a number")
		return core.Timestamp{}
	}
	var ts core.Timestamp
	if err := ts.UnmarshalJSON([]byte(number.String())); err != nil {
		m.fail(name, "must be a unix timestamp")
		return core.Timestamp{}
	}
	return ts
}

// requireValue accepts any JSON value, null included, but not absence.
func (m *matcher) requireValue(name string) core.Value {
	value, _ := m.field(name)
	return value
}

var _ core.Decoder = Decoder{}
