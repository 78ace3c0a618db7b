package core

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type ServerConfig struct {
	Host                  string `koanf:"host" mapstructure:"host"`
	Port                  int    `koanf:"port" mapstructure:"port"`
	ReadTimeoutSeconds    int    `koanf:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds   int    `koanf:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	MaxBodyBytes          int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type BTCPayConfig struct {
	Enabled                bool   `koanf:"enabled" mapstructure:"enabled"`
	WebhookPath            string `koanf:"webhook_path" mapstructure:"webhook_path"`
	WebhookSecret          string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	Host                   string `koanf:"host" mapstructure:"host"`
	APIKey                 string `koanf:"api_key" mapstructure:"api_key"`
	InvoiceCacheTTLSeconds int    `koanf:"invoice_cache_ttl_seconds" mapstructure:"invoice_cache_ttl_seconds"`
}

type LNbitsConfig struct {
	Enabled      bool   `koanf:"enabled" mapstructure:"enabled"`
	WebhookPath  string `koanf:"webhook_path" mapstructure:"webhook_path"`
	WebhookToken string `koanf:"webhook_token" mapstructure:"webhook_token"`
}

type DatabaseConfig struct {
	Driver             string `koanf:"driver" mapstructure:"driver"`
	URL                string `koanf:"url" mapstructure:"url"`
	Debug              bool   `koanf:"debug" mapstructure:"debug"`
	PingTimeoutSeconds int    `koanf:"ping_timeout_seconds" mapstructure:"ping_timeout_seconds"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" mapstructure:"addr"`
	Password string `koanf:"password" mapstructure:"password"`
	DB       int    `koanf:"db" mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers" mapstructure:"brokers"`
	Topic   string   `koanf:"topic" mapstructure:"topic"`
	// JobsTopic, when set, receives go-job execution messages for
	// follow-up work on each new grant.
	JobsTopic string `koanf:"jobs_topic" mapstructure:"jobs_topic"`
}

type DeliveryConfig struct {
	ClaimTTLSeconds int `koanf:"claim_ttl_seconds" mapstructure:"claim_ttl_seconds"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	LogLevel    string         `koanf:"log_level" mapstructure:"log_level"`
	Server      ServerConfig   `koanf:"server" mapstructure:"server"`
	BTCPay      BTCPayConfig   `koanf:"btcpay" mapstructure:"btcpay"`
	LNbits      LNbitsConfig   `koanf:"lnbits" mapstructure:"lnbits"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
	Redis       RedisConfig    `koanf:"redis" mapstructure:"redis"`
	Kafka       KafkaConfig    `koanf:"kafka" mapstructure:"kafka"`
	Delivery    DeliveryConfig `koanf:"delivery" mapstructure:"delivery"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "lightning-webhooks",
		LogLevel:    "info",
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8080,
			ReadTimeoutSeconds:    10,
			WriteTimeoutSeconds:   10,
			RequestTimeoutSeconds: 5,
			MaxBodyBytes:          1 << 20,
		},
		BTCPay: BTCPayConfig{
			Enabled:                true,
			WebhookPath:            "/btcpay/webhook",
			InvoiceCacheTTLSeconds: 60,
		},
		LNbits: LNbitsConfig{
			Enabled:     true,
			WebhookPath: "/lnbits/webhook",
		},
		Database: DatabaseConfig{
			Driver:             DriverPostgres,
			PingTimeoutSeconds: 5,
		},
		Kafka: KafkaConfig{
			Topic: "lightning.access",
		},
		Delivery: DeliveryConfig{
			ClaimTTLSeconds: 600,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return ConfigurationFailure("service_name", "service_name is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return ConfigurationFailure("server.port", fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.BTCPay.Enabled && strings.TrimSpace(c.BTCPay.WebhookSecret) == "" {
		return ConfigurationFailure("btcpay.webhook_secret", "btcpay.webhook_secret is required when the btcpay route is enabled")
	}
	if strings.TrimSpace(c.BTCPay.APIKey) != "" && strings.TrimSpace(c.BTCPay.Host) == "" {
		return ConfigurationFailure("btcpay.host", "btcpay.host is required when btcpay.api_key is set")
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return ConfigurationFailure("database.url", "database.url is required")
	}
	switch strings.TrimSpace(c.Database.Driver) {
	case DriverPostgres, DriverSQLite:
	default:
		return ConfigurationFailure("database.driver", fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return ConfigurationFailure("kafka.topic", "kafka.topic is required when kafka.brokers is set")
	}
	return nil
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(c.Port))
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return seconds(c.ReadTimeoutSeconds)
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return seconds(c.WriteTimeoutSeconds)
}

func (c ServerConfig) RequestTimeout() time.Duration {
	return seconds(c.RequestTimeoutSeconds)
}

func (c BTCPayConfig) InvoiceLookupEnabled() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.APIKey) != ""
}

func (c BTCPayConfig) InvoiceCacheTTL() time.Duration {
	return seconds(c.InvoiceCacheTTLSeconds)
}

func (c DeliveryConfig) ClaimTTL() time.Duration {
	return seconds(c.ClaimTTLSeconds)
}

// DatabaseConfig satisfies the go-persistence-bun config contract.

func (c DatabaseConfig) GetDebug() bool {
	return c.Debug
}

func (c DatabaseConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c DatabaseConfig) GetServer() string {
	return strings.TrimSpace(c.URL)
}

func (c DatabaseConfig) GetPingTimeout() time.Duration {
	if c.PingTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return seconds(c.PingTimeoutSeconds)
}

func (c DatabaseConfig) GetOtelIdentifier() string {
	return "lightning-webhooks"
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}
