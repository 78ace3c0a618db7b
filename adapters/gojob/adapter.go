package gojob

import (
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"

	"github.com/goliatone/go-lightning-webhooks/access"
)

const (
	JobIDAccessGranted = "lightning.access.granted"
	// DedupPolicyDrop drops an enqueue whose idempotency key is already
	// queued, so a re-notified grant runs its follow-up once.
	DedupPolicyDrop = job.DeduplicationPolicy("drop")
)

// AccessGrantedMessage maps a committed grant to the follow-up job message.
// The grant id doubles as the idempotency key.
func AccessGrantedMessage(grant access.Grant) *job.ExecutionMessage {
	params := map[string]any{
		"grant_id":    strings.TrimSpace(grant.ID),
		"identity_id": strings.TrimSpace(grant.IdentityID),
		"pubkey":      strings.TrimSpace(grant.Pubkey),
		"content_id":  strings.TrimSpace(grant.ContentID),
		"provider":    strings.TrimSpace(grant.Provider),
		"reference":   strings.TrimSpace(grant.Reference),
	}
	if !grant.CreatedAt.IsZero() {
		params["created_at"] = grant.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return &job.ExecutionMessage{
		JobID:          JobIDAccessGranted,
		ScriptPath:     JobIDAccessGranted,
		Parameters:     params,
		IdempotencyKey: "grant:" + strings.TrimSpace(grant.ID),
		DedupPolicy:    DedupPolicyDrop,
	}
}

// GrantFromMessage is the worker-side inverse of AccessGrantedMessage.
func GrantFromMessage(msg *job.ExecutionMessage) (access.Grant, error) {
	if msg == nil {
		return access.Grant{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDAccessGranted {
		return access.Grant{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	grant := access.Grant{
		ID:         paramString(msg.Parameters, "grant_id"),
		IdentityID: paramString(msg.Parameters, "identity_id"),
		Pubkey:     paramString(msg.Parameters, "pubkey"),
		ContentID:  paramString(msg.Parameters, "content_id"),
		Provider:   paramString(msg.Parameters, "provider"),
		Reference:  paramString(msg.Parameters, "reference"),
	}
	if grant.ID == "" || grant.Pubkey == "" || grant.ContentID == "" {
		return access.Grant{}, fmt.Errorf("gojob: access granted message is missing grant fields")
	}
	if raw := paramString(msg.Parameters, "created_at"); raw != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return access.Grant{}, fmt.Errorf("gojob: invalid created_at: %w", err)
		}
		grant.CreatedAt = createdAt.UTC()
	}
	return grant, nil
}

func paramString(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return strings.TrimSpace(fmt.Sprint(value))
	}
	return strings.TrimSpace(text)
}
