package config

import (
	"time"

	"github.com/vietddude/deposit-watcher/internal/infra/kafka"
	redisclient "github.com/vietddude/deposit-watcher/internal/infra/redis"
	"github.com/vietddude/deposit-watcher/internal/infra/storage/postgres"
)

// DefaultDepositContract is the beacon chain deposit contract on mainnet.
const DefaultDepositContract = "0x00000000219ab540356cBB839Cbe05303d7705Fa"

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Chain         ChainConfig         `yaml:"chain"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Database      postgres.Config     `yaml:"database"`
	Redis         redisclient.Config  `yaml:"redis"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Kafka         kafka.Config        `yaml:"kafka"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ChainConfig holds the JSON-RPC endpoint and the contract being watched.
type ChainConfig struct {
	Name            string        `yaml:"name"`
	RPCURL          string        `yaml:"rpc_url"`
	RPCTimeout      time.Duration `yaml:"rpc_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	DepositContract string        `yaml:"deposit_contract"`
}

// TrackerConfig controls the poll loop.
type TrackerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	CheckDepth   uint64        `yaml:"check_depth"`
	Lookback     uint64        `yaml:"lookback"`

	// SuppressReplays stops notifications for deposits seen again unchanged.
	SuppressReplays bool `yaml:"suppress_replays"`
}

// NotificationsConfig bounds the dispatch queues.
type NotificationsConfig struct {
	QueueSize   int           `yaml:"queue_size"`
	Workers     int           `yaml:"workers"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// TelegramConfig enables the bot when Token is set.
type TelegramConfig struct {
	Token       string        `yaml:"token"`
	APIURL      string        `yaml:"api_url"`
	PollTimeout int           `yaml:"poll_timeout"` // seconds
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// Enabled reports whether a bot token is configured.
func (c TelegramConfig) Enabled() bool { return c.Token != "" }

// KafkaEnabled reports whether any broker is configured.
func (c *AppConfig) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }
