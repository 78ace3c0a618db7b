package btcpay

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-lightning-webhooks/core"
)

// InvoiceMetadata is the merchant-supplied bag attached to an invoice. Known
// keys are typed; every other key is kept in Extra. A known key whose value
// has an unexpected type is kept in Extra instead of failing the decode.
type InvoiceMetadata struct {
	OrderID       *string
	OrderURL      *string
	BuyerName     *string
	BuyerEmail    *string
	BuyerCountry  *string
	BuyerZip      *string
	BuyerState    *string
	BuyerCity     *string
	BuyerAddress1 *string
	BuyerAddress2 *string
	BuyerPhone    *string
	ItemDesc      *string
	ItemCode      *string
	Physical      *bool
	TaxIncluded   *json.Number
	PosData       *core.Value
	Extra         map[string]core.Value
}

func (m *InvoiceMetadata) stringFields() map[string]**string {
	return map[string]**string{
		"orderId":       &m.OrderID,
		"orderUrl":      &m.OrderURL,
		"buyerName":     &m.BuyerName,
		"buyerEmail":    &m.BuyerEmail,
		"buyerCountry":  &m.BuyerCountry,
		"buyerZip":      &m.BuyerZip,
		"buyerState":    &m.BuyerState,
		"buyerCity":     &m.BuyerCity,
		"buyerAddress1": &m.BuyerAddress1,
		"buyerAddress2": &m.BuyerAddress2,
		"buyerPhone":    &m.BuyerPhone,
		"itemDesc":      &m.ItemDesc,
		"itemCode":      &m.ItemCode,
	}
}

func (m *InvoiceMetadata) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	decoded := InvoiceMetadata{}
	targets := decoded.stringFields()
	for key, raw := range fields {
		if target, ok := targets[key]; ok {
			var value *string
			if json.Unmarshal(raw, &value) == nil {
				*target = value
				continue
			}
		}
		switch key {
		case "physical":
			var value *bool
			if json.Unmarshal(raw, &value) == nil {
				decoded.Physical = value
				continue
			}
		case "taxIncluded":
			parsed, err := core.ParseValue(raw)
			if err == nil && (parsed.Kind() == core.ValueKindNumber || parsed.IsNull()) {
				if number, ok := parsed.Raw().(json.Number); ok {
					decoded.TaxIncluded = &number
				}
				continue
			}
		case "posData":
			parsed, err := core.ParseValue(raw)
			if err != nil {
				return err
			}
			if !parsed.IsNull() {
				decoded.PosData = &parsed
			}
			continue
		}
		parsed, err := core.ParseValue(raw)
		if err != nil {
			return err
		}
		if decoded.Extra == nil {
			decoded.Extra = map[string]core.Value{}
		}
		decoded.Extra[key] = parsed
	}
	*m = decoded
	return nil
}

func (m InvoiceMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+4)
	for key, value := range m.Extra {
		out[key] = value
	}
	for key, target := range m.stringFields() {
		if *target != nil {
			out[key] = **target
		}
	}
	if m.Physical != nil {
		out["physical"] = *m.Physical
	}
	if m.TaxIncluded != nil {
		out["taxIncluded"] = *m.TaxIncluded
	}
	if m.PosData != nil {
		out["posData"] = *m.PosData
	}
	return json.Marshal(out)
}

// Lookup returns a string value for key, consulting posData first and then
// the top-level metadata keys. posData may be an object or a JSON-encoded
// string holding one.
func (m *InvoiceMetadata) Lookup(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	if m.PosData != nil {
		if value, ok := m.PosData.GetString(key); ok {
			return value, true
		}
	}
	if value, ok := m.Extra[key]; ok {
		if text, ok := value.AsString(); ok && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), true
		}
	}
	return "", false
}
