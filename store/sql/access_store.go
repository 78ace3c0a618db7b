package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-lightning-webhooks/access"
)

// AccessStore persists identities and their content grants. A grant is
// unique per identity and content item.
type AccessStore struct {
	db         *bun.DB
	identities repository.Repository[*identityRecord]
	grants     repository.Repository[*accessGrantRecord]
	now        func() time.Time
}

func NewAccessStore(db *bun.DB) (*AccessStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	identities := repository.NewRepository[*identityRecord](db, identityHandlers())
	if validator, ok := identities.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid identity repository wiring: %w", err)
		}
	}
	grants := repository.NewRepository[*accessGrantRecord](db, accessGrantHandlers())
	if validator, ok := grants.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid access grant repository wiring: %w", err)
		}
	}
	return &AccessStore{
		db:         db,
		identities: identities,
		grants:     grants,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// GrantAccess upserts the identity and inserts the grant in one transaction.
// Created is false when the identity already held the content.
func (s *AccessStore) GrantAccess(ctx context.Context, msg access.GrantMessage) (access.GrantResult, error) {
	if s == nil || s.db == nil {
		return access.GrantResult{}, fmt.Errorf("sqlstore: access store is not configured")
	}
	if err := msg.Validate(); err != nil {
		return access.GrantResult{}, err
	}
	msg = msg.Normalized()
	now := s.now()

	var result access.GrantResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		identity, err := upsertIdentityTx(ctx, tx, msg.Pubkey, now)
		if err != nil {
			return err
		}

		record := &accessGrantRecord{
			ID:         uuid.NewString(),
			IdentityID: identity.ID,
			ContentID:  msg.ContentID,
			Provider:   msg.Provider,
			Reference:  msg.Reference,
			CreatedAt:  now,
		}
		res, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (identity_id, content_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 1 {
			result = access.GrantResult{Grant: record.toDomain(identity.Pubkey), Created: true}
			return nil
		}

		existing := &accessGrantRecord{}
		if err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.identity_id = ?", identity.ID).
			Where("?TableAlias.content_id = ?", msg.ContentID).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		result = access.GrantResult{Grant: existing.toDomain(identity.Pubkey), Created: false}
		return nil
	})
	if err != nil {
		return access.GrantResult{}, fmt.Errorf("sqlstore: grant access: %w", err)
	}
	return result, nil
}

func upsertIdentityTx(ctx context.Context, tx bun.Tx, pubkey string, now time.Time) (*identityRecord, error) {
	candidate := &identityRecord{
		ID:        uuid.NewString(),
		Pubkey:    pubkey,
		CreatedAt: now,
	}
	if _, err := tx.NewInsert().
		Model(candidate).
		On("CONFLICT (pubkey) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, err
	}
	stored := &identityRecord{}
	if err := tx.NewSelect().
		Model(stored).
		Where("?TableAlias.pubkey = ?", pubkey).
		Limit(1).
		Scan(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// Identity returns the identity registered for pubkey.
func (s *AccessStore) Identity(ctx context.Context, pubkey string) (access.Identity, bool, error) {
	if s == nil || s.identities == nil {
		return access.Identity{}, false, fmt.Errorf("sqlstore: access store is not configured")
	}
	records, _, err := s.identities.List(ctx,
		repository.SelectBy("pubkey", "=", strings.TrimSpace(pubkey)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return access.Identity{}, false, nil
		}
		return access.Identity{}, false, err
	}
	if len(records) == 0 {
		return access.Identity{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

// Grants lists the content grants held by pubkey, oldest first.
func (s *AccessStore) Grants(ctx context.Context, pubkey string) ([]access.Grant, error) {
	if s == nil || s.grants == nil {
		return nil, fmt.Errorf("sqlstore: access store is not configured")
	}
	identity, ok, err := s.Identity(ctx, pubkey)
	if err != nil || !ok {
		return nil, err
	}
	records, _, err := s.grants.List(ctx,
		repository.SelectBy("identity_id", "=", identity.ID),
		repository.OrderBy("created_at ASC"),
		repository.OrderBy("content_id ASC"),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []access.Grant{}, nil
		}
		return nil, err
	}
	out := make([]access.Grant, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain(identity.Pubkey))
	}
	return out, nil
}

func (s *AccessStore) HasAccess(ctx context.Context, pubkey string, contentID string) (bool, error) {
	grants, err := s.Grants(ctx, pubkey)
	if err != nil {
		return false, err
	}
	contentID = strings.TrimSpace(contentID)
	for _, grant := range grants {
		if grant.ContentID == contentID {
			return true, nil
		}
	}
	return false, nil
}
