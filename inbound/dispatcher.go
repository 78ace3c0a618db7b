package inbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-lightning-webhooks/core"
)

const DefaultClaimTTL = 10 * time.Minute

type Dispatcher struct {
	ProviderID string
	Store      core.ClaimStore
	ClaimTTL   time.Duration
	Logger     core.Logger

	mu       sync.RWMutex
	handlers map[string]core.EventHandler
}

func NewDispatcher(providerID string, store core.ClaimStore, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		ProviderID: strings.TrimSpace(providerID),
		Store:      store,
		ClaimTTL:   DefaultClaimTTL,
		Logger:     core.EnsureLogger(logger),
		handlers:   map[string]core.EventHandler{},
	}
}

// Register binds handler to eventType. Unsupported cannot be bound; it is
// always acknowledged without side effects.
func (d *Dispatcher) Register(eventType string, handler core.EventHandler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return inboundBadInput("inbound: event type is required", nil)
	}
	if eventType == core.EventTypeUnsupported {
		return inboundBadInput("inbound: unsupported events cannot have a handler", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", map[string]any{"event_type": eventType})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[string]core.EventHandler{}
	}
	if _, exists := d.handlers[eventType]; exists {
		return core.ConflictFailure(
			fmt.Sprintf("inbound: handler already registered for event type %q", eventType),
			map[string]any{"provider": d.ProviderID, "event_type": eventType},
		)
	}
	d.handlers[eventType] = handler
	return nil
}

// On registers fn for eventType, asserting the concrete event type before
// calling it.
func On[T core.Event](d *Dispatcher, eventType string, fn func(ctx context.Context, event T) error) error {
	if fn == nil {
		return inboundBadInput("inbound: handler is nil", map[string]any{"event_type": eventType})
	}
	return d.Register(eventType, core.EventHandlerFunc(func(ctx context.Context, event core.Event) error {
		typed, ok := event.(T)
		if !ok {
			return inboundInternal(
				fmt.Sprintf("inbound: handler for %q received %T", eventType, event),
				map[string]any{"event_type": eventType},
			)
		}
		return fn(ctx, typed)
	}))
}

func (d *Dispatcher) Dispatch(ctx context.Context, event core.Event) (core.InboundResult, error) {
	if d == nil {
		return core.InboundResult{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	if event == nil {
		return core.InboundResult{}, inboundInternal("inbound: event is nil", map[string]any{"provider": d.ProviderID})
	}
	eventType := event.EventType()
	fields := map[string]any{"provider": d.ProviderID, "event_type": eventType}

	if eventType == core.EventTypeUnsupported {
		core.Log(ctx, d.Logger, core.LogLevelDebug, "unsupported webhook acknowledged", fields)
		return ignored(eventType), nil
	}
	handler := d.handlerFor(eventType)
	if handler == nil {
		core.Log(ctx, d.Logger, core.LogLevelDebug, "webhook has no handler", fields)
		return ignored(eventType), nil
	}

	claimID := ""
	if keyer, ok := event.(core.DeliveryKeyer); ok && d.Store != nil {
		if key := strings.TrimSpace(keyer.DeliveryKey()); key != "" {
			fields["delivery_key"] = key
			var accepted bool
			var err error
			claimID, accepted, err = d.Store.Claim(ctx, d.ProviderID+":"+key, d.claimTTL())
			if err != nil {
				return core.InboundResult{}, core.HandlerFailure(err, "inbound: delivery claim failed", fields)
			}
			if !accepted {
				core.Log(ctx, d.Logger, core.LogLevelInfo, "duplicate webhook delivery acknowledged", fields)
				return core.InboundResult{
					Accepted:   true,
					StatusCode: http.StatusOK,
					EventType:  eventType,
					Metadata:   map[string]any{"deduped": true},
				}, nil
			}
		}
	}

	if err := handler.Handle(ctx, event); err != nil {
		handlerErr := core.HandlerFailure(err, "inbound: handler execution failed", fields)
		if claimID != "" {
			if failErr := d.Store.Fail(ctx, claimID, err, time.Time{}); failErr != nil {
				return core.InboundResult{}, errors.Join(
					handlerErr,
					core.HandlerFailure(failErr, "inbound: release delivery claim", fields),
				)
			}
		}
		return core.InboundResult{StatusCode: http.StatusInternalServerError, EventType: eventType}, handlerErr
	}
	if claimID != "" {
		if err := d.Store.Complete(ctx, claimID); err != nil {
			return core.InboundResult{}, core.HandlerFailure(err, "inbound: complete delivery claim", fields)
		}
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		EventType:  eventType,
		Metadata:   map[string]any{},
	}, nil
}

func (d *Dispatcher) claimTTL() time.Duration {
	if d != nil && d.ClaimTTL > 0 {
		return d.ClaimTTL
	}
	return DefaultClaimTTL
}

func (d *Dispatcher) handlerFor(eventType string) core.EventHandler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[eventType]
}

func ignored(eventType string) core.InboundResult {
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		EventType:  eventType,
		Metadata:   map[string]any{"ignored": true},
	}
}
