package notify

import (
	"context"
	"errors"

	"github.com/goliatone/go-lightning-webhooks/access"
)

// Multi calls every sink in order and joins their errors. A failing sink
// does not stop the ones after it.
type Multi []access.Notifier

func (m Multi) AccessGranted(ctx context.Context, grant access.Grant) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.AccessGranted(ctx, grant); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine drops nil sinks and returns nil when none remain.
func Combine(notifiers ...access.Notifier) access.Notifier {
	out := make(Multi, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			out = append(out, notifier)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}
