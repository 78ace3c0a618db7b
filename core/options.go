package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// LoadConfig builds the process configuration from defaults, the raw loader
// and runtime overrides. Any validation failure is a ConfigurationFailure and
// must stop startup.
func LoadConfig(ctx context.Context, loader RawConfigLoader, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	loaded, err := NewCfgxConfigProvider(loader).Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type envKind int

const (
	envString envKind = iota
	envInt
	envBool
	envList
)

type envBinding struct {
	names []string
	path  []string
	kind  envKind
}

var envBindings = []envBinding{
	{names: []string{"SERVICE_NAME"}, path: []string{"service_name"}},
	{names: []string{"LOG_LEVEL"}, path: []string{"log_level"}},
	{names: []string{"HOST"}, path: []string{"server", "host"}},
	{names: []string{"PORT"}, path: []string{"server", "port"}, kind: envInt},
	{names: []string{"SERVER_READ_TIMEOUT_SECONDS"}, path: []string{"server", "read_timeout_seconds"}, kind: envInt},
	{names: []string{"SERVER_WRITE_TIMEOUT_SECONDS"}, path: []string{"server", "write_timeout_seconds"}, kind: envInt},
	{names: []string{"SERVER_REQUEST_TIMEOUT_SECONDS"}, path: []string{"server", "request_timeout_seconds"}, kind: envInt},
	{names: []string{"SERVER_MAX_BODY_BYTES"}, path: []string{"server", "max_body_bytes"}, kind: envInt},
	{names: []string{"BTCPAY_ENABLED"}, path: []string{"btcpay", "enabled"}, kind: envBool},
	{names: []string{"BTCPAY_WEBHOOK_PATH"}, path: []string{"btcpay", "webhook_path"}},
	{names: []string{"BTCPAY_WEBHOOK_SECRET"}, path: []string{"btcpay", "webhook_secret"}},
	{names: []string{"BTCPAY_HOST"}, path: []string{"btcpay", "host"}},
	{names: []string{"BTCPAY_API_KEY"}, path: []string{"btcpay", "api_key"}},
	{names: []string{"BTCPAY_INVOICE_CACHE_TTL_SECONDS"}, path: []string{"btcpay", "invoice_cache_ttl_seconds"}, kind: envInt},
	{names: []string{"LNBITS_ENABLED"}, path: []string{"lnbits", "enabled"}, kind: envBool},
	{names: []string{"LNBITS_WEBHOOK_PATH"}, path: []string{"lnbits", "webhook_path"}},
	{names: []string{"LNBITS_WEBHOOK_TOKEN"}, path: []string{"lnbits", "webhook_token"}},
	{names: []string{"DATABASE_DRIVER"}, path: []string{"database", "driver"}},
	{names: []string{"DATABASE_URL", "POSTGRES_ADDRESS"}, path: []string{"database", "url"}},
	{names: []string{"DATABASE_DEBUG"}, path: []string{"database", "debug"}, kind: envBool},
	{names: []string{"REDIS_ADDR"}, path: []string{"redis", "addr"}},
	{names: []string{"REDIS_PASSWORD"}, path: []string{"redis", "password"}},
	{names: []string{"REDIS_DB"}, path: []string{"redis", "db"}, kind: envInt},
	{names: []string{"KAFKA_BROKERS"}, path: []string{"kafka", "brokers"}, kind: envList},
	{names: []string{"KAFKA_TOPIC"}, path: []string{"kafka", "topic"}},
	{names: []string{"KAFKA_JOBS_TOPIC"}, path: []string{"kafka", "jobs_topic"}},
	{names: []string{"DELIVERY_CLAIM_TTL_SECONDS"}, path: []string{"delivery", "claim_ttl_seconds"}, kind: envInt},
}

// EnvRawConfigLoader reads the process environment. Prefix, when set, is
// tried before the bare variable name so deployments can namespace values
// while the legacy names keep working.
type EnvRawConfigLoader struct {
	Prefix string
	Lookup func(string) (string, bool)
}

func (l EnvRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw := map[string]any{}
	for _, binding := range envBindings {
		name, value, ok := l.lookupBinding(lookup, binding)
		if !ok {
			continue
		}
		parsed, err := parseEnvValue(binding.kind, value)
		if err != nil {
			return nil, ConfigurationFailure(strings.Join(binding.path, "."), fmt.Sprintf("%s: %v", name, err))
		}
		setPath(raw, binding.path, parsed)
	}
	return raw, nil
}

func (l EnvRawConfigLoader) lookupBinding(lookup func(string) (string, bool), binding envBinding) (string, string, bool) {
	prefix := strings.TrimSpace(l.Prefix)
	for _, name := range binding.names {
		if prefix != "" {
			if value, ok := lookup(prefix + name); ok && strings.TrimSpace(value) != "" {
				return prefix + name, strings.TrimSpace(value), true
			}
		}
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			return name, strings.TrimSpace(value), true
		}
	}
	return "", "", false
}

func parseEnvValue(kind envKind, value string) (any, error) {
	switch kind {
	case envInt:
		return strconv.Atoi(value)
	case envBool:
		return strconv.ParseBool(value)
	case envList:
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

func setPath(target map[string]any, path []string, value any) {
	current := target
	for i, segment := range path {
		if i == len(path)-1 {
			current[segment] = value
			return
		}
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

// Resolve layers defaults, the loaded config and runtime overrides. The
// loaded config is already complete, so its zero values are kept; runtime
// only contributes the fields it sets.
func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, true)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	put := func(target map[string]any, key string, value any, zero bool) {
		if includeZero || !zero {
			target[key] = value
		}
	}
	section := func(key string, fields map[string]any) {
		if len(fields) > 0 {
			layer[key] = fields
		}
	}

	put(layer, "service_name", cfg.ServiceName, strings.TrimSpace(cfg.ServiceName) == "")
	put(layer, "log_level", cfg.LogLevel, strings.TrimSpace(cfg.LogLevel) == "")

	server := map[string]any{}
	put(server, "host", cfg.Server.Host, strings.TrimSpace(cfg.Server.Host) == "")
	put(server, "port", cfg.Server.Port, cfg.Server.Port == 0)
	put(server, "read_timeout_seconds", cfg.Server.ReadTimeoutSeconds, cfg.Server.ReadTimeoutSeconds == 0)
	put(server, "write_timeout_seconds", cfg.Server.WriteTimeoutSeconds, cfg.Server.WriteTimeoutSeconds == 0)
	put(server, "request_timeout_seconds", cfg.Server.RequestTimeoutSeconds, cfg.Server.RequestTimeoutSeconds == 0)
	put(server, "max_body_bytes", cfg.Server.MaxBodyBytes, cfg.Server.MaxBodyBytes == 0)
	section("server", server)

	btcpay := map[string]any{}
	put(btcpay, "enabled", cfg.BTCPay.Enabled, !cfg.BTCPay.Enabled)
	put(btcpay, "webhook_path", cfg.BTCPay.WebhookPath, strings.TrimSpace(cfg.BTCPay.WebhookPath) == "")
	put(btcpay, "webhook_secret", cfg.BTCPay.WebhookSecret, cfg.BTCPay.WebhookSecret == "")
	put(btcpay, "host", cfg.BTCPay.Host, strings.TrimSpace(cfg.BTCPay.Host) == "")
	put(btcpay, "api_key", cfg.BTCPay.APIKey, cfg.BTCPay.APIKey == "")
	put(btcpay, "invoice_cache_ttl_seconds", cfg.BTCPay.InvoiceCacheTTLSeconds, cfg.BTCPay.InvoiceCacheTTLSeconds == 0)
	section("btcpay", btcpay)

	lnbits := map[string]any{}
	put(lnbits, "enabled", cfg.LNbits.Enabled, !cfg.LNbits.Enabled)
	put(lnbits, "webhook_path", cfg.LNbits.WebhookPath, strings.TrimSpace(cfg.LNbits.WebhookPath) == "")
	put(lnbits, "webhook_token", cfg.LNbits.WebhookToken, cfg.LNbits.WebhookToken == "")
	section("lnbits", lnbits)

	database := map[string]any{}
	put(database, "driver", cfg.Database.Driver, strings.TrimSpace(cfg.Database.Driver) == "")
	put(database, "url", cfg.Database.URL, strings.TrimSpace(cfg.Database.URL) == "")
	put(database, "debug", cfg.Database.Debug, !cfg.Database.Debug)
	put(database, "ping_timeout_seconds", cfg.Database.PingTimeoutSeconds, cfg.Database.PingTimeoutSeconds == 0)
	section("database", database)

	redis := map[string]any{}
	put(redis, "addr", cfg.Redis.Addr, strings.TrimSpace(cfg.Redis.Addr) == "")
	put(redis, "password", cfg.Redis.Password, cfg.Redis.Password == "")
	put(redis, "db", cfg.Redis.DB, cfg.Redis.DB == 0)
	section("redis", redis)

	kafka := map[string]any{}
	put(kafka, "brokers", append([]string(nil), cfg.Kafka.Brokers...), len(cfg.Kafka.Brokers) == 0)
	put(kafka, "topic", cfg.Kafka.Topic, strings.TrimSpace(cfg.Kafka.Topic) == "")
	put(kafka, "jobs_topic", cfg.Kafka.JobsTopic, strings.TrimSpace(cfg.Kafka.JobsTopic) == "")
	section("kafka", kafka)

	delivery := map[string]any{}
	put(delivery, "claim_ttl_seconds", cfg.Delivery.ClaimTTLSeconds, cfg.Delivery.ClaimTTLSeconds == 0)
	section("delivery", delivery)

	return layer
}
