package floor

import (
	"fmt"
	"time"

	"github.com/viant/floor/policy"
)

// Config is the serialisable part of the runtime configuration
type Config struct {
	Watchdog WatchdogConfig `json:"watchdog" yaml:"watchdog" toml:"watchdog"`
	// Retention is how long finished processes stay listed
	Retention time.Duration `json:"retention" yaml:"retention" toml:"retention"`
	// ShutdownTimeout bounds Shutdown when the caller context has no deadline
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout" toml:"shutdownTimeout"`
	// Policy admits invocations, all are admitted when nil
	Policy *policy.Config `json:"policy,omitempty" yaml:"policy,omitempty" toml:"policy,omitempty"`
}

// WatchdogConfig configures timeout detection
type WatchdogConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval" toml:"interval"`
}

// DefaultConfig returns the configuration used when none is supplied
func DefaultConfig() *Config {
	return &Config{
		Watchdog:        WatchdogConfig{Interval: 10 * time.Millisecond},
		Retention:       10 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate returns an error describing the first invalid setting
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Watchdog.Interval <= 0 {
		return fmt.Errorf("watchdog.interval must be > 0")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdownTimeout must be > 0")
	}
	if c.Policy != nil {
		switch c.Policy.Mode {
		case "", policy.ModeAuto, policy.ModeDeny, policy.ModeAsk:
		default:
			return fmt.Errorf("policy.mode: unsupported %q", c.Policy.Mode)
		}
	}
	return nil
}
