package access

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps grants in process memory.
type MemoryStore struct {
	mu         sync.Mutex
	identities map[string]Identity
	grants     map[string]Grant
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: map[string]Identity{},
		grants:     map[string]Grant{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryStore) GrantAccess(_ context.Context, msg GrantMessage) (GrantResult, error) {
	if err := msg.Validate(); err != nil {
		return GrantResult{}, err
	}
	msg = msg.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	identity, ok := s.identities[msg.Pubkey]
	if !ok {
		identity = Identity{ID: uuid.NewString(), Pubkey: msg.Pubkey, CreatedAt: now}
		s.identities[msg.Pubkey] = identity
	}

	key := identity.ID + "\x00" + msg.ContentID
	if existing, ok := s.grants[key]; ok {
		return GrantResult{Grant: existing, Created: false}, nil
	}
	grant := Grant{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		Pubkey:     identity.Pubkey,
		ContentID:  msg.ContentID,
		Provider:   msg.Provider,
		Reference:  msg.Reference,
		CreatedAt:  now,
	}
	s.grants[key] = grant
	return GrantResult{Grant: grant, Created: true}, nil
}

// Grants returns a snapshot of every stored grant.
func (s *MemoryStore) Grants() []Grant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Grant, 0, len(s.grants))
	for _, grant := range s.grants {
		out = append(out, grant)
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
