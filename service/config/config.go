package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string `envconfig:"SERVER_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Database configuration
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// NATS configuration
	NATSURL string `envconfig:"NATS_URL" default:"nats://localhost:4222"`

	// Solana configuration. SolanaRPCURL may list several endpoints
	// separated by commas; one is picked per process.
	SolanaRPCURL       string        `envconfig:"SOLANA_RPC_URL" default:"https://api.devnet.solana.com"`
	SolanaNetwork      string        `envconfig:"SOLANA_NETWORK" default:"devnet"`
	SolanaRPCRateLimit float64       `envconfig:"SOLANA_RPC_RATE_LIMIT" default:"0"`
	SolanaRPCTimeout   time.Duration `envconfig:"SOLANA_RPC_TIMEOUT" default:"30s"`

	// Confirmation
	ConfirmPollInterval       time.Duration `envconfig:"CONFIRM_POLL_INTERVAL" default:"2s"`
	InteractiveConfirmTimeout time.Duration `envconfig:"INTERACTIVE_CONFIRM_TIMEOUT" default:"30s"`
	JobConfirmTimeout         time.Duration `envconfig:"JOB_CONFIRM_TIMEOUT" default:"60s"`
	ReconcileDelay            time.Duration `envconfig:"RECONCILE_DELAY" default:"5m"`

	// Key custody
	KeystoreDir      string `envconfig:"KEYSTORE_DIR"`
	KeystorePassword string `envconfig:"KEYSTORE_PASSWORD"`

	// Temporal configuration
	TemporalHost      string `envconfig:"TEMPORAL_HOST" default:"localhost:7233"`
	TemporalNamespace string `envconfig:"TEMPORAL_NAMESPACE" default:"default"`
	TemporalTaskQueue string `envconfig:"TEMPORAL_TASK_QUEUE" default:"solwithdraw-withdrawals"`
}

// Load reads configuration from environment variables and validates it.
// Every problem is reported in one error.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: [%v]", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	if len(c.RPCEndpoints()) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	switch c.SolanaNetwork {
	case "mainnet", "mainnet-beta", "devnet", "testnet", "localnet":
	default:
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK %q is not a known network", c.SolanaNetwork))
	}

	if c.SolanaRPCRateLimit < 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_RATE_LIMIT cannot be negative"))
	}

	if c.ConfirmPollInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("CONFIRM_POLL_INTERVAL must be at least 100ms"))
	}

	if c.InteractiveConfirmTimeout < c.ConfirmPollInterval {
		errs = append(errs, fmt.Errorf("INTERACTIVE_CONFIRM_TIMEOUT (%v) cannot be shorter than CONFIRM_POLL_INTERVAL (%v)",
			c.InteractiveConfirmTimeout, c.ConfirmPollInterval))
	}

	if c.JobConfirmTimeout < c.ConfirmPollInterval {
		errs = append(errs, fmt.Errorf("JOB_CONFIRM_TIMEOUT (%v) cannot be shorter than CONFIRM_POLL_INTERVAL (%v)",
			c.JobConfirmTimeout, c.ConfirmPollInterval))
	}

	if c.KeystoreDir == "" {
		errs = append(errs, fmt.Errorf("KEYSTORE_DIR is required"))
	}

	if c.KeystorePassword == "" {
		errs = append(errs, fmt.Errorf("KEYSTORE_PASSWORD is required"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_HOST is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_NAMESPACE is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_TASK_QUEUE is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// RPCEndpoints returns the configured RPC endpoints.
func (c *Config) RPCEndpoints() []string {
	return solana.ParseEndpoints(c.SolanaRPCURL)
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	r := *c
	if r.KeystorePassword != "" {
		r.KeystorePassword = "[REDACTED]"
	}
	if i := strings.LastIndex(r.DatabaseURL, "@"); i > 0 {
		r.DatabaseURL = "[REDACTED]" + r.DatabaseURL[i:]
	}
	return r
}
