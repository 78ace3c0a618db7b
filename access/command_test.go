package access

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-lightning-webhooks/core"
)

type recordingNotifier struct {
	mu     sync.Mutex
	grants []Grant
	err    error
}

func (n *recordingNotifier) AccessGranted(_ context.Context, grant Grant) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.grants = append(n.grants, grant)
	return n.err
}

type failingStore struct {
	err error
}

func (s failingStore) GrantAccess(context.Context, GrantMessage) (GrantResult, error) {
	return GrantResult{}, s.err
}

func TestGrantCommand_RedeliveryIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	notifier := &recordingNotifier{}
	cmd := NewGrantCommand(store, notifier, nil)
	msg := GrantMessage{Provider: "btcpay", Pubkey: " npub1abc ", ContentID: "article-7", Reference: "inv-1"}

	for i := 0; i < 3; i++ {
		if err := cmd.Execute(context.Background(), msg); err != nil {
			t.Fatalf("execute attempt %d: %v", i, err)
		}
	}

	grants := store.Grants()
	if len(grants) != 1 {
		t.Fatalf("expected one grant, got %d", len(grants))
	}
	if grants[0].Pubkey != "npub1abc" {
		t.Fatalf("expected trimmed pubkey, got %q", grants[0].Pubkey)
	}
	if len(notifier.grants) != 1 {
		t.Fatalf("expected a single notification, got %d", len(notifier.grants))
	}
}

func TestGrantCommand_SameIdentityDifferentContent(t *testing.T) {
	store := NewMemoryStore()
	cmd := NewGrantCommand(store, nil, nil)

	for _, contentID := range []string{"a", "b"} {
		if err := cmd.Execute(context.Background(), GrantMessage{Provider: "lnbits", Pubkey: "pk", ContentID: contentID}); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}
	grants := store.Grants()
	if len(grants) != 2 {
		t.Fatalf("expected two grants, got %d", len(grants))
	}
	if grants[0].IdentityID != grants[1].IdentityID {
		t.Fatalf("expected grants to share one identity")
	}
}

func TestGrantCommand_ValidationFailure(t *testing.T) {
	cmd := NewGrantCommand(NewMemoryStore(), nil, nil)
	err := cmd.Execute(context.Background(), GrantMessage{Provider: "btcpay", ContentID: "c"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
}

func TestGrantCommand_StoreFailureIsHandlerFailure(t *testing.T) {
	cmd := NewGrantCommand(failingStore{err: errors.New("connection refused")}, nil, nil)
	err := cmd.Execute(context.Background(), GrantMessage{Provider: "btcpay", Pubkey: "pk", ContentID: "c"})
	if err == nil {
		t.Fatalf("expected store failure")
	}
	if core.StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", core.StatusCode(err))
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.WebhookErrorHandlerFailed {
		t.Fatalf("expected handler failure envelope, got %v", err)
	}
}

func TestGrantCommand_NotifierFailureDoesNotFailGrant(t *testing.T) {
	store := NewMemoryStore()
	notifier := &recordingNotifier{err: errors.New("broker unavailable")}
	cmd := NewGrantCommand(store, notifier, nil)

	if err := cmd.Execute(context.Background(), GrantMessage{Provider: "btcpay", Pubkey: "pk", ContentID: "c"}); err != nil {
		t.Fatalf("expected notifier error to be swallowed, got %v", err)
	}
	if len(store.Grants()) != 1 {
		t.Fatalf("expected grant to be stored")
	}
}

func TestGrantCommand_NilStore(t *testing.T) {
	var cmd *GrantCommand
	if err := cmd.Execute(context.Background(), GrantMessage{}); err == nil {
		t.Fatalf("expected nil command error")
	}
}
