package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func identityHandlers() repository.ModelHandlers[*identityRecord] {
	return repository.ModelHandlers[*identityRecord]{
		NewRecord: func() *identityRecord {
			return &identityRecord{}
		},
		GetID: func(record *identityRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *identityRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "pubkey"
		},
		GetIdentifierValue: func(record *identityRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Pubkey)
		},
	}
}

func accessGrantHandlers() repository.ModelHandlers[*accessGrantRecord] {
	return repository.ModelHandlers[*accessGrantRecord]{
		NewRecord: func() *accessGrantRecord {
			return &accessGrantRecord{}
		},
		GetID: func(record *accessGrantRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *accessGrantRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *accessGrantRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
