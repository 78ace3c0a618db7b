package access

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-lightning-webhooks/core"
)

const TypeGrant = "lightning.command.access.grant"

type GrantMessage struct {
	Provider  string
	Pubkey    string
	ContentID string
	// Reference identifies the payment that produced the grant, such as a
	// BTCPay invoice id or an LNbits payment hash.
	Reference string
}

func (GrantMessage) Type() string { return TypeGrant }

func (m GrantMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return validationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Pubkey) == "" {
		return validationError("pubkey", "pubkey is required")
	}
	if strings.TrimSpace(m.ContentID) == "" {
		return validationError("content_id", "content id is required")
	}
	return nil
}

type Identity struct {
	ID        string
	Pubkey    string
	CreatedAt time.Time
}

type Grant struct {
	ID         string
	IdentityID string
	Pubkey     string
	ContentID  string
	Provider   string
	Reference  string
	CreatedAt  time.Time
}

type GrantResult struct {
	Grant Grant
	// Created is false when the grant already existed.
	Created bool
}

// Store applies a grant idempotently. Implementations upsert the identity by
// pubkey and insert the grant with conflict-ignore semantics in one unit of
// work.
type Store interface {
	GrantAccess(ctx context.Context, msg GrantMessage) (GrantResult, error)
}

// Notifier is told about grants after they are committed.
type Notifier interface {
	AccessGranted(ctx context.Context, grant Grant) error
}

type NotifierFunc func(ctx context.Context, grant Grant) error

func (f NotifierFunc) AccessGranted(ctx context.Context, grant Grant) error {
	return f(ctx, grant)
}

// Normalized returns m with surrounding whitespace trimmed from every field.
func (m GrantMessage) Normalized() GrantMessage {
	return GrantMessage{
		Provider:  strings.TrimSpace(m.Provider),
		Pubkey:    strings.TrimSpace(m.Pubkey),
		ContentID: strings.TrimSpace(m.ContentID),
		Reference: strings.TrimSpace(m.Reference),
	}
}

func validationError(field string, message string) error {
	return goerrors.NewValidation("access: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.WebhookErrorMalformedInput)
}
