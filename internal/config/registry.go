package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/kernelfinder/internal/finder"
)

// RegistryConfig holds the tunables of the kernel finder registry
type RegistryConfig struct {
	// FailurePolicy decides what a failing finder does to a listing
	// Options: "fail_fast" (abort the listing) or "isolate" (skip the finder)
	// Default: "fail_fast"
	FailurePolicy string

	// ListPolicy decides how overlapping listings interact
	// Options: "serialize" or "concurrent"
	// Default: "serialize"
	ListPolicy string

	// ReadyTimeoutSeconds bounds the wait for finder readiness
	// 0 = wait as long as the caller's context allows
	// Default: 0, Range: 0-600
	ReadyTimeoutSeconds int

	// HistoryEnabled records registry events into the sqlite history
	// Default: true
	HistoryEnabled bool

	// HistoryRetentionHours is how long recorded events are kept
	// Default: 168 (one week), Range: 1-8760
	HistoryRetentionHours int
}

// DefaultRegistryConfig returns the default registry configuration
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		FailurePolicy:         string(finder.FailFast),
		ListPolicy:            string(finder.Serialize),
		ReadyTimeoutSeconds:   0,
		HistoryEnabled:        true,
		HistoryRetentionHours: 168,
	}
}

// Validate checks if the configuration has valid values
func (c RegistryConfig) Validate() error {
	if !finder.FailurePolicy(c.FailurePolicy).IsValid() {
		return fmt.Errorf("failure_policy must be '%s' or '%s' (got %q)",
			finder.FailFast, finder.Isolate, c.FailurePolicy)
	}

	if !finder.ListPolicy(c.ListPolicy).IsValid() {
		return fmt.Errorf("list_policy must be '%s' or '%s' (got %q)",
			finder.Serialize, finder.Concurrent, c.ListPolicy)
	}

	if c.ReadyTimeoutSeconds < 0 || c.ReadyTimeoutSeconds > 600 {
		return fmt.Errorf("ready_timeout_seconds must be between 0 and 600 (got %d)", c.ReadyTimeoutSeconds)
	}

	if c.HistoryRetentionHours < 1 || c.HistoryRetentionHours > 8760 {
		return fmt.Errorf("history_retention_hours must be between 1 and 8760 (got %d)",
			c.HistoryRetentionHours)
	}

	return nil
}

// String returns a human-readable representation of the config
func (c RegistryConfig) String() string {
	return fmt.Sprintf(
		"RegistryConfig{FailurePolicy: %s, ListPolicy: %s, ReadyTimeout: %ds, "+
			"HistoryEnabled: %t, HistoryRetention: %dh}",
		c.FailurePolicy, c.ListPolicy, c.ReadyTimeoutSeconds,
		c.HistoryEnabled, c.HistoryRetentionHours,
	)
}

// ReadyTimeout returns the readiness bound as a time.Duration
func (c RegistryConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSeconds) * time.Second
}

// HistoryRetention returns the retention period as a time.Duration
func (c RegistryConfig) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionHours) * time.Hour
}

// FinderConfig converts the settings into the registry's own config.
func (c RegistryConfig) FinderConfig(logger *zap.Logger, observer finder.Observer) finder.Config {
	cfg := finder.DefaultConfig()
	cfg.FailurePolicy = finder.FailurePolicy(c.FailurePolicy)
	cfg.ListPolicy = finder.ListPolicy(c.ListPolicy)
	cfg.ReadyTimeout = c.ReadyTimeout()
	cfg.Logger = logger
	cfg.Observer = observer
	return cfg
}

// RegistryConfigFromEnv creates a RegistryConfig from environment variables,
// falling back to defaults
//
// Environment variables:
//   - KF_FAILURE_POLICY: fail_fast or isolate (default: fail_fast)
//   - KF_LIST_POLICY: serialize or concurrent (default: serialize)
//   - KF_READY_TIMEOUT_SECONDS: Readiness bound in seconds, 0 for none (default: 0)
//   - KF_HISTORY_ENABLED: Record registry events (default: true)
//   - KF_HISTORY_RETENTION_HOURS: How long to keep recorded events (default: 168)
//
// Returns an error if any environment variable has an invalid value.
func RegistryConfigFromEnv() (RegistryConfig, error) {
	cfg := DefaultRegistryConfig()

	if err := parseEnvString("KF_FAILURE_POLICY", &cfg.FailurePolicy); err != nil {
		return cfg, err
	}
	if err := parseEnvString("KF_LIST_POLICY", &cfg.ListPolicy); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("KF_READY_TIMEOUT_SECONDS", &cfg.ReadyTimeoutSeconds); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("KF_HISTORY_ENABLED", &cfg.HistoryEnabled); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("KF_HISTORY_RETENTION_HOURS", &cfg.HistoryRetentionHours); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid registry configuration from environment: %w", err)
	}

	return cfg, nil
}
