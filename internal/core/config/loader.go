package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Chain.Name == "" {
		c.Chain.Name = "ethereum"
	}
	if c.Chain.RPCTimeout == 0 {
		c.Chain.RPCTimeout = 30 * time.Second
	}
	if c.Chain.MaxAttempts == 0 {
		c.Chain.MaxAttempts = 5
	}
	if c.Chain.DepositContract == "" {
		c.Chain.DepositContract = DefaultDepositContract
	}

	if c.Tracker.PollInterval == 0 {
		c.Tracker.PollInterval = 15 * time.Second
	}
	if c.Tracker.ErrorBackoff == 0 {
		c.Tracker.ErrorBackoff = 60 * time.Second
	}
	if c.Tracker.CheckDepth == 0 {
		c.Tracker.CheckDepth = 10
	}
	if c.Tracker.Lookback == 0 {
		c.Tracker.Lookback = 100
	}

	if c.Notifications.QueueSize == 0 {
		c.Notifications.QueueSize = 256
	}
	if c.Notifications.Workers == 0 {
		c.Notifications.Workers = 4
	}
	if c.Notifications.SendTimeout == 0 {
		c.Notifications.SendTimeout = 10 * time.Second
	}

	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 30
	}
	if c.Telegram.HTTPTimeout == 0 {
		c.Telegram.HTTPTimeout = time.Duration(c.Telegram.PollTimeout+10) * time.Second
	}
}

// Validate reports settings the watcher cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("chain.rpc_url is required"))
	}
	if !common.IsHexAddress(c.Chain.DepositContract) {
		errs = append(errs, fmt.Errorf("chain.deposit_contract %q is not an address", c.Chain.DepositContract))
	}
	if c.Notifications.QueueSize < 0 || c.Notifications.Workers < 0 {
		errs = append(errs, errors.New("notifications.queue_size and notifications.workers must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
