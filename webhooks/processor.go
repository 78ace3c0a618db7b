package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-lightning-webhooks/core"
)

type EventDispatcher interface {
	Dispatch(ctx context.Context, event core.Event) (core.InboundResult, error)
}

// Processor turns a verified webhook into a dispatched event. Malformed JSON
// answers 400, handler failures 500, everything else 200.
type Processor struct {
	ProviderID   string
	Decoder      core.Decoder
	Dispatcher   EventDispatcher
	Logger       core.Logger
	Metrics      core.MetricsRecorder
	MaxBodyBytes int64
	Now          func() time.Time
}

func NewProcessor(providerID string, decoder core.Decoder, dispatcher EventDispatcher, logger core.Logger) *Processor {
	return &Processor{
		ProviderID: strings.TrimSpace(providerID),
		Decoder:    decoder,
		Dispatcher: dispatcher,
		Logger:     core.EnsureLogger(logger),
		Metrics:    core.NopMetricsRecorder{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Decoder == nil || p.Dispatcher == nil {
		return core.InboundResult{StatusCode: http.StatusInternalServerError},
			core.InternalFailure("webhooks: processor requires decoder and dispatcher", nil)
	}
	startedAt := p.now()
	fields := map[string]any{"provider": p.ProviderID}
	if requestID, ok := req.Metadata["request_id"]; ok {
		fields["request_id"] = requestID
	}

	event, err := p.Decoder.Decode(req.Body)
	if err != nil {
		malformed := core.MalformedInput(err, "webhooks: malformed webhook payload", map[string]any{
			"provider": p.ProviderID,
		})
		p.observe(ctx, startedAt, "malformed", fields, malformed)
		return core.InboundResult{StatusCode: http.StatusBadRequest}, malformed
	}
	fields["event_type"] = event.EventType()
	core.Log(ctx, p.Logger, core.LogLevelDebug, "webhook decoded", fields)

	result, err := p.Dispatcher.Dispatch(ctx, event)
	if err != nil {
		if result.StatusCode == 0 {
			result.StatusCode = core.StatusCode(err)
		}
		result.EventType = event.EventType()
		p.observe(ctx, startedAt, "failed", fields, err)
		return result, err
	}
	if result.StatusCode == 0 {
		result.StatusCode = http.StatusOK
	}
	result.Accepted = true
	result.EventType = event.EventType()
	p.observe(ctx, startedAt, "accepted", fields, nil)
	return result, nil
}

func (p *Processor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := CaptureBody(r, p.MaxBodyBytes)
	if err != nil {
		core.Log(r.Context(), p.Logger, core.LogLevelWarn, "webhook body unreadable", map[string]any{
			"provider": p.ProviderID,
			"error":    err.Error(),
		})
		writeJSON(w, http.StatusBadRequest, "Bad Request")
		return
	}

	result, err := p.Process(r.Context(), NewInboundRequest(p.ProviderID, r, body))
	status := result.StatusCode
	if status == 0 {
		status = core.StatusCode(err)
	}
	switch {
	case err == nil:
		w.WriteHeader(status)
	case status == http.StatusBadRequest:
		writeJSON(w, http.StatusBadRequest, "Bad Request")
	case status == http.StatusUnauthorized:
		w.WriteHeader(http.StatusUnauthorized)
	default:
		writeJSON(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (p *Processor) observe(ctx context.Context, startedAt time.Time, outcome string, fields map[string]any, err error) {
	elapsed := p.now().Sub(startedAt)
	logFields := core.CloneFields(fields)
	logFields["outcome"] = outcome
	logFields["duration_ms"] = elapsed.Milliseconds()
	level := core.LogLevelInfo
	switch {
	case err == nil:
	case core.StatusCode(err) < http.StatusInternalServerError:
		level = core.LogLevelWarn
		logFields["error"] = err.Error()
	default:
		level = core.LogLevelError
		logFields["error"] = err.Error()
	}
	core.Log(ctx, p.Logger, level, "webhook processed", logFields)

	if p.Metrics == nil {
		return
	}
	tags := map[string]string{"provider": p.ProviderID, "outcome": outcome}
	if eventType, ok := fields["event_type"].(string); ok {
		tags["event_type"] = eventType
	}
	p.Metrics.IncCounter(ctx, "webhooks.processed.total", 1, tags)
	p.Metrics.ObserveHistogram(ctx, "webhooks.processed.duration_ms", float64(elapsed.Milliseconds()), tags)
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
