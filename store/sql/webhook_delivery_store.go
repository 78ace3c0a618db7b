package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-lightning-webhooks/inbound"
)

const (
	deliveryStatusProcessing = "processing"
	deliveryStatusRetryReady = "retry_ready"
	deliveryStatusComplete   = "complete"

	maxLastErrorLength = 512
)

// ClaimStore is a core.ClaimStore backed by the webhook_deliveries table, so
// redelivery dedupe holds across processes sharing the database.
type ClaimStore struct {
	db  *bun.DB
	Now func() time.Time
}

func NewClaimStore(db *bun.DB) (*ClaimStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ClaimStore{
		db: db,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *ClaimStore) Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: claim store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("sqlstore: delivery key is required")
	}
	if lease <= 0 {
		lease = inbound.DefaultClaimTTL
	}
	now := s.now()
	nowMS := now.UnixMilli()
	claimID := uuid.NewString()

	record := &webhookDeliveryRecord{
		DeliveryKey:      key,
		ClaimID:          claimID,
		Status:           deliveryStatusProcessing,
		Attempts:         1,
		TTLMillis:        lease.Milliseconds(),
		LeaseExpiresAtMS: nowMS + lease.Milliseconds(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (delivery_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return "", false, err
	}
	if inserted, err := res.RowsAffected(); err != nil {
		return "", false, err
	} else if inserted == 1 {
		return claimID, true, nil
	}

	// Take over a key whose lease or completion window has lapsed, or whose
	// retry time has been reached.
	res, err = s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", deliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("ttl_ms = ?", lease.Milliseconds()).
		Set("lease_expires_at_ms = ?", nowMS+lease.Milliseconds()).
		Set("retry_at_ms = 0").
		Set("updated_at = ?", now).
		Where("delivery_key = ?", key).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				Where("status IN (?) AND lease_expires_at_ms <= ?",
					bun.In([]string{deliveryStatusProcessing, deliveryStatusComplete}), nowMS).
				WhereOr("status = ? AND retry_at_ms <= ?", deliveryStatusRetryReady, nowMS)
		}).
		Exec(ctx)
	if err != nil {
		return "", false, err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if updated == 0 {
		return "", false, nil
	}
	return claimID, true, nil
}

// Complete keeps the key for its claim TTL so redeliveries inside that
// window are acknowledged without running the handler again.
func (s *ClaimStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	now := s.now()
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", deliveryStatusComplete).
		Set("lease_expires_at_ms = ? + ttl_ms", now.UnixMilli()).
		Set("retry_at_ms = 0").
		Set("last_error = ''").
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", deliveryStatusProcessing).
		Exec(ctx)
	return err
}

func (s *ClaimStore) Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	now := s.now()
	if retryAt.IsZero() {
		retryAt = now
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
		if len(lastError) > maxLastErrorLength {
			lastError = lastError[:maxLastErrorLength]
		}
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", deliveryStatusRetryReady).
		Set("retry_at_ms = ?", retryAt.UTC().UnixMilli()).
		Set("lease_expires_at_ms = 0").
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", deliveryStatusProcessing).
		Exec(ctx)
	return err
}

// DeliveryState is the persisted view of one delivery key.
type DeliveryState struct {
	Key       string
	Status    string
	Attempts  int
	LastError string
	UpdatedAt time.Time
}

func (s *ClaimStore) Get(ctx context.Context, key string) (DeliveryState, bool, error) {
	if s == nil || s.db == nil {
		return DeliveryState{}, false, fmt.Errorf("sqlstore: claim store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_key = ?", strings.TrimSpace(key)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DeliveryState{}, false, nil
		}
		return DeliveryState{}, false, err
	}
	return DeliveryState{
		Key:       record.DeliveryKey,
		Status:    record.Status,
		Attempts:  record.Attempts,
		LastError: record.LastError,
		UpdatedAt: record.UpdatedAt.UTC(),
	}, true, nil
}

func (s *ClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
