package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const EventTypeUnsupported = "Unsupported"

// Event is one decoded webhook notification. Every processor exposes a closed
// set of implementations plus an Unsupported fallback.
type Event interface {
	EventType() string
	Provider() string
}

// Decoder turns raw webhook bytes into an Event. Only malformed JSON is an
// error; valid JSON of an unknown shape decodes to the processor's
// Unsupported variant.
type Decoder interface {
	Decode(body []byte) (Event, error)
}

// DeliveryKeyer is implemented by events that carry a stable delivery
// identity usable for redelivery dedupe.
type DeliveryKeyer interface {
	DeliveryKey() string
}

type InboundRequest struct {
	ProviderID string
	Path       string
	Headers    map[string]string
	Query      map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	EventType  string
	Metadata   map[string]any
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// ClaimStore leases a delivery key for the duration of one handler run.
// Claim reports accepted=false when the key is already being processed or
// was completed within its TTL.
type ClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
