// Package gocommand runs access commands through the go-command dispatcher
// and mirrors them into a go-job queue registry for background workers.
package gocommand

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

const queueResolverKey = "queue"

// ValidateMessageContract requires a non-empty Type() and runs Validate()
// when the message has one.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// Bus owns a command registry, the queue registry it mirrors into and the
// dispatcher subscriptions made through Handle.
type Bus struct {
	mu            sync.Mutex
	registry      *command.Registry
	queue         *jobqueuecommand.Registry
	subscriptions []commanddispatcher.Subscription
	started       bool
}

// NewBus builds a bus. A nil queue gets a fresh registry.
func NewBus(queue *jobqueuecommand.Registry) (*Bus, error) {
	if queue == nil {
		queue = jobqueuecommand.NewRegistry()
	}
	registry := command.NewRegistry()
	if err := registry.AddResolver(queueResolverKey, jobqueuecommand.QueueResolver(queue)); err != nil {
		return nil, fmt.Errorf("gocommand: add queue resolver: %w", err)
	}
	return &Bus{registry: registry, queue: queue}, nil
}

// Queue is the go-job registry commands are mirrored into on Start.
func (b *Bus) Queue() *jobqueuecommand.Registry {
	if b == nil {
		return nil
	}
	return b.queue
}

// Handle subscribes cmd to its message type and registers it for queue
// mirroring. It must be called before Start.
func Handle[T any](b *Bus, cmd command.Commander[T], runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	var zero T
	messageType := command.GetMessageType(zero)
	if strings.TrimSpace(messageType) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("gocommand: cannot handle %s after start", messageType)
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := b.registry.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return fmt.Errorf("gocommand: register %s: %w", messageType, err)
	}
	b.subscriptions = append(b.subscriptions, subscription)
	return nil
}

// Start runs the registry resolvers once.
func (b *Bus) Start() error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if err := b.registry.Initialize(); err != nil {
		return fmt.Errorf("gocommand: initialize registry: %w", err)
	}
	b.started = true
	return nil
}

// Close drops every dispatcher subscription.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subscription := range b.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	b.subscriptions = nil
}

// Dispatcher is a command.Commander that checks the message contract and
// then routes it through the go-command dispatcher.
type Dispatcher[T any] struct{}

func (Dispatcher[T]) Execute(ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}
