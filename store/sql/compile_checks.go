package sqlstore

import (
	"github.com/goliatone/go-lightning-webhooks/access"
	"github.com/goliatone/go-lightning-webhooks/core"
)

var (
	_ access.Store    = (*AccessStore)(nil)
	_ core.ClaimStore = (*ClaimStore)(nil)
)
