package lightning

import (
	"github.com/goliatone/go-lightning-webhooks/core"
)

type Config = core.Config

type ServerConfig = core.ServerConfig
type BTCPayConfig = core.BTCPayConfig
type LNbitsConfig = core.LNbitsConfig
type DatabaseConfig = core.DatabaseConfig

type Logger = core.Logger
type ClaimStore = core.ClaimStore
type MetricsRecorder = core.MetricsRecorder

func DefaultConfig() Config {
	return core.DefaultConfig()
}
