package access

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-lightning-webhooks/core"
)

type GrantCommand struct {
	store    Store
	notifier Notifier
	logger   core.Logger
}

func NewGrantCommand(store Store, notifier Notifier, logger core.Logger) *GrantCommand {
	return &GrantCommand{
		store:    store,
		notifier: notifier,
		logger:   core.EnsureLogger(logger),
	}
}

// Execute writes the grant and notifies only when a new row was created. A
// notifier failure is logged; the grant is already committed and a retry
// would not change it.
func (c *GrantCommand) Execute(ctx context.Context, msg GrantMessage) error {
	if c == nil || c.store == nil {
		return core.InternalFailure("access: grant store is required", nil)
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	msg = msg.Normalized()
	fields := map[string]any{
		"provider":   msg.Provider,
		"content_id": msg.ContentID,
		"reference":  msg.Reference,
	}

	result, err := c.store.GrantAccess(ctx, msg)
	if err != nil {
		return core.HandlerFailure(err, "access: grant failed", fields)
	}
	storeResult(ctx, result)

	fields["grant_id"] = result.Grant.ID
	fields["created"] = result.Created
	core.Log(ctx, c.logger, core.LogLevelInfo, "access grant applied", fields)

	if !result.Created || c.notifier == nil {
		return nil
	}
	if err := c.notifier.AccessGranted(ctx, result.Grant); err != nil {
		fields["error"] = err.Error()
		core.Log(ctx, c.logger, core.LogLevelWarn, "access grant notification failed", fields)
	}
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

var _ gocmd.Commander[GrantMessage] = (*GrantCommand)(nil)
