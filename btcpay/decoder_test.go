package btcpay

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/goliatone/go-lightning-webhooks/core"
)

const settledPayload = `{
  "manuallyMarked": false,
  "deliveryId": "WZbyGsmWGZvYjRsYCH7Vmt",
  "webhookId": "AT7ogqNzXkjf12sLVWPDNS",
  "originalDeliveryId": "WZbyGsmWGZvYjRsYCH7Vmt",
  "isRedelivery": false,
  "type": "InvoiceSettled",
  "timestamp": 1683049755,
  "storeId": "BJKmPvug3KHVWyu1ECEiAstAQXFjJD1fX87EcgEhHVLT",
  "invoiceId": "6wmoR7p5UFVzCYuwyiViKX",
  "metadata": {
    "orderId": "23",
    "physical": false
  }
}`

func TestDecoder_KnownVariants(t *testing.T) {
	cases := map[string]string{
		EventInvoiceSettled:         `{"type":"InvoiceSettled","overPaid":true}`,
		EventInvoicePaymentSettled:  `{"type":"InvoicePaymentSettled","paymentMethod":"BTC-LightningNetwork","payment":{"id":"p1","status":"Settled","value":"0.0001"}}`,
		EventInvoiceReceivedPayment: `{"type":"InvoiceReceivedPayment","afterExpiration":false}`,
		EventInvoiceExpired:         `{"type":"InvoiceExpired","partiallyPaid":true}`,
		EventInvoiceInvalid:         `{"type":"InvoiceInvalid","manuallyMarked":true}`,
		EventInvoiceProcessing:      `{"type":"InvoiceProcessing","overPaid":false}`,
		EventInvoiceCreated:         `{"type":"InvoiceCreated","storeId":"s1"}`,
	}
	for want, payload := range cases {
		event, err := NewDecoder().Decode([]byte(payload))
		if err != nil {
			t.Fatalf("decode %s: %v", want, err)
		}
		if event.EventType() != want {
			t.Fatalf("expected %s, got %s", want, event.EventType())
		}
		if event.Provider() != ProviderID {
			t.Fatalf("expected provider %q, got %q", ProviderID, event.Provider())
		}
	}
}

func TestDecoder_SettledFields(t *testing.T) {
	event, err := NewDecoder().Decode([]byte(settledPayload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	settled, ok := event.(InvoiceSettledEvent)
	if !ok {
		t.Fatalf("expected InvoiceSettledEvent, got %T", event)
	}
	if settled.Invoice() != "6wmoR7p5UFVzCYuwyiViKX" || settled.Store() == "" {
		t.Fatalf("unexpected ids %q %q", settled.Store(), settled.Invoice())
	}
	if settled.ManuallyMarked == nil || *settled.ManuallyMarked {
		t.Fatalf("expected manuallyMarked=false to be populated")
	}
	if settled.OverPaid != nil {
		t.Fatalf("expected overPaid to stay unset")
	}
	if settled.Timestamp == nil || settled.Timestamp.Unix() != 1683049755 {
		t.Fatalf("expected timestamp 1683049755, got %#v", settled.Timestamp)
	}
	if settled.Metadata == nil || settled.Metadata.OrderID == nil || *settled.Metadata.OrderID != "23" {
		t.Fatalf("expected metadata orderId 23")
	}
	if settled.DeliveryKey() != "WZbyGsmWGZvYjRsYCH7Vmt" {
		t.Fatalf("unexpected delivery key %q", settled.DeliveryKey())
	}
}

func TestDecoder_UnsupportedFallbacks(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		tag     string
	}{
		{name: "unknown tag", payload: `{"type":"SomethingNew","storeId":"s"}`, tag: "SomethingNew"},
		{name: "missing tag", payload: `{"storeId":"s"}`},
		{name: "non string tag", payload: `{"type":5}`},
		{name: "variant field mismatch", payload: `{"type":"InvoiceSettled","overPaid":"yes"}`, tag: "InvoiceSettled"},
		{name: "timestamp as string", payload: `{"type":"InvoiceCreated","timestamp":"yesterday"}`, tag: "InvoiceCreated"},
		{name: "array document", payload: `[1,2,3]`},
		{name: "scalar document", payload: `"InvoiceSettled"`},
		{name: "null document", payload: `null`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := NewDecoder().Decode([]byte(tc.payload))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			unsupported, ok := event.(Unsupported)
			if !ok {
				t.Fatalf("expected Unsupported, got %T", event)
			}
			if unsupported.EventType() != core.EventTypeUnsupported {
				t.Fatalf("unexpected event type %q", unsupported.EventType())
			}
			if unsupported.Tag != tc.tag {
				t.Fatalf("expected tag %q, got %q", tc.tag, unsupported.Tag)
			}
		})
	}
}

func TestDecoder_MalformedJSONFails(t *testing.T) {
	for _, payload := range []string{`{BAD`, ``, `{"type":"InvoiceSettled"} trailing`} {
		if _, err := NewDecoder().Decode([]byte(payload)); err == nil {
			t.Fatalf("expected malformed payload %q to fail", payload)
		}
	}
}

func TestDecoder_IgnoresUnknownFields(t *testing.T) {
	event, err := NewDecoder().Decode([]byte(`{"type":"InvoiceExpired","brandNewField":{"nested":true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.EventType() != EventInvoiceExpired {
		t.Fatalf("expected InvoiceExpired, got %s", event.EventType())
	}
}

func TestDecoder_RoundTripPreservesPopulatedFields(t *testing.T) {
	payloads := []string{
		settledPayload,
		`{"type":"InvoicePaymentSettled","deliveryId":"d1","timestamp":1683049755.25,"payment":{"id":"p1","receivedDate":1683049700,"value":"0.00010000","fee":"0.0","status":"Processing","destination":"lnbc1"},"metadata":{"posData":{"pubkey":"npub","content_id":"c1"},"itemDesc":"article","taxIncluded":0.5,"custom":[1,"two"]}}`,
		`{"type":"InvoiceExpired","partiallyPaid":true,"manuallyMarked":false}`,
	}
	for _, payload := range payloads {
		event, err := NewDecoder().Decode([]byte(payload))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		encoded, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		var want, got map[string]any
		if err := json.Unmarshal([]byte(payload), &want); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if err := json.Unmarshal(encoded, &got); err != nil {
			t.Fatalf("unmarshal encoded: %v", err)
		}
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("round trip mismatch\nwant %v\ngot  %v", want, got)
		}
	}
}

func TestDecoder_RoundTripOmitsUnsetFields(t *testing.T) {
	event, err := NewDecoder().Decode([]byte(`{"type":"InvoiceCreated"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(encoded) != `{"type":"InvoiceCreated"}` {
		t.Fatalf("expected only the type field, got %s", encoded)
	}
}

func TestDecoder_FloatTimestampKeepsLiteral(t *testing.T) {
	event, err := NewDecoder().Decode([]byte(`{"type":"InvoiceProcessing","timestamp":1683049755.5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	processing := event.(InvoiceProcessingEvent)
	if processing.Timestamp.Literal() != "1683049755.5" {
		t.Fatalf("expected literal to be preserved, got %q", processing.Timestamp.Literal())
	}
	if processing.Timestamp.Unix() != 1683049755 {
		t.Fatalf("expected truncated seconds, got %d", processing.Timestamp.Unix())
	}
}

func TestPaymentStatus_UnknownIsInvalid(t *testing.T) {
	var payment Payment
	if err := json.Unmarshal([]byte(`{"status":"Refunded"}`), &payment); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payment.StatusValue() != PaymentStatusInvalid {
		t.Fatalf("expected Invalid, got %s", payment.StatusValue())
	}
	if (Payment{}).StatusValue() != PaymentStatusInvalid {
		t.Fatalf("expected unset status to be Invalid")
	}
	if err := json.Unmarshal([]byte(`{"status":"Settled"}`), &payment); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payment.StatusValue() != PaymentStatusSettled {
		t.Fatalf("expected Settled, got %s", payment.StatusValue())
	}
}

func TestInvoiceMetadata_PosDataLookup(t *testing.T) {
	cases := []string{
		`{"posData":{"pubkey":"npub1","content_id":"c-9"}}`,
		`{"posData":"{\"pubkey\":\"npub1\",\"content_id\":\"c-9\"}"}`,
		`{"pubkey":"npub1","content_id":"c-9"}`,
	}
	for _, payload := range cases {
		var metadata InvoiceMetadata
		if err := json.Unmarshal([]byte(payload), &metadata); err != nil {
			t.Fatalf("unmarshal %s: %v", payload, err)
		}
		pubkey, ok := metadata.Lookup(PubkeyKey)
		if !ok || pubkey != "npub1" {
			t.Fatalf("expected pubkey from %s, got %q", payload, pubkey)
		}
		contentID, ok := metadata.Lookup(ContentIDKey)
		if !ok || contentID != "c-9" {
			t.Fatalf("expected content id from %s, got %q", payload, contentID)
		}
	}
}

func TestInvoiceMetadata_MistypedKnownKeyIsKept(t *testing.T) {
	var metadata InvoiceMetadata
	if err := json.Unmarshal([]byte(`{"physical":"true","orderId":23}`), &metadata); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if metadata.Physical != nil || metadata.OrderID != nil {
		t.Fatalf("expected mistyped keys to stay out of typed fields")
	}
	if _, ok := metadata.Extra["physical"]; !ok {
		t.Fatalf("expected physical to be kept in extra")
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `{"orderId":23,"physical":"true"}` {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}
