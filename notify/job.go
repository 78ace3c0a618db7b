package notify

import (
	"context"
	"fmt"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-lightning-webhooks/access"
	"github.com/goliatone/go-lightning-webhooks/adapters/gojob"
)

// Enqueuer matches queue.Enqueuer.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// JobNotifier schedules the lightning.access.granted follow-up job.
type JobNotifier struct {
	enqueuer Enqueuer
}

func NewJobNotifier(enqueuer Enqueuer) *JobNotifier {
	return &JobNotifier{enqueuer: enqueuer}
}

func (n *JobNotifier) AccessGranted(ctx context.Context, grant access.Grant) error {
	if n == nil || n.enqueuer == nil {
		return fmt.Errorf("notify: job enqueuer is not configured")
	}
	if err := n.enqueuer.Enqueue(ctx, gojob.AccessGrantedMessage(grant)); err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", gojob.JobIDAccessGranted, err)
	}
	return nil
}

var (
	_ Enqueuer        = (queue.Enqueuer)(nil)
	_ access.Notifier = (*JobNotifier)(nil)
)
