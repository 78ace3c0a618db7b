package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-lightning-webhooks/access"
)

type identityRecord struct {
	bun.BaseModel `bun:"table:identities,alias:idn"`

	ID        string    `bun:"id,pk"`
	Pubkey    string    `bun:"pubkey,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type accessGrantRecord struct {
	bun.BaseModel `bun:"table:access_grants,alias:ag"`

	ID         string    `bun:"id,pk"`
	IdentityID string    `bun:"identity_id,notnull"`
	ContentID  string    `bun:"content_id,notnull"`
	Provider   string    `bun:"provider,notnull"`
	Reference  string    `bun:"reference,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// webhookDeliveryRecord is one delivery claim. Deadlines are unix
// milliseconds so comparisons stay portable across dialects.
type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	DeliveryKey      string    `bun:"delivery_key,pk"`
	ClaimID          string    `bun:"claim_id,notnull"`
	Status           string    `bun:"status,notnull"`
	Attempts         int       `bun:"attempts,notnull"`
	TTLMillis        int64     `bun:"ttl_ms,notnull"`
	LeaseExpiresAtMS int64     `bun:"lease_expires_at_ms,notnull"`
	RetryAtMS        int64     `bun:"retry_at_ms,notnull"`
	LastError        string    `bun:"last_error,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *identityRecord) toDomain() access.Identity {
	if r == nil {
		return access.Identity{}
	}
	return access.Identity{
		ID:        r.ID,
		Pubkey:    r.Pubkey,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r *accessGrantRecord) toDomain(pubkey string) access.Grant {
	if r == nil {
		return access.Grant{}
	}
	return access.Grant{
		ID:         r.ID,
		IdentityID: r.IdentityID,
		Pubkey:     pubkey,
		ContentID:  r.ContentID,
		Provider:   r.Provider,
		Reference:  r.Reference,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}
