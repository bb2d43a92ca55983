/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package admission

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"
)

const cfgDefaultKeyPrefix = "admission"

const (
	cfgKeyMaxConcurrentRequests           = "maxConcurrentRequests"
	cfgKeyRequestTimeout                  = "requestTimeout"
	cfgKeyMaxQueueSize                    = "maxQueueSize"
	cfgKeyGracefulDegradationEnabled      = "gracefulDegradation.enabled"
	cfgKeyGracefulDegradationThresholdPct = "gracefulDegradation.thresholdPercent"
)

// Default configuration values.
const (
	DefaultMaxConcurrentRequests        = 1000
	DefaultRequestTimeout               = 30 * time.Second
	DefaultMaxQueueSize                 = 500
	DefaultDegradationThresholdPercent  = 80
	defaultGracefulDegradationIsEnabled = true
)

// Config represents a set of configuration parameters for Controller.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// MaxConcurrentRequests is the maximum number of requests executing at the same time.
	MaxConcurrentRequests int `mapstructure:"maxConcurrentRequests" yaml:"maxConcurrentRequests" json:"maxConcurrentRequests"`

	// RequestTimeout limits how long a request may stay admitted or queued
	// before an expiry sweep reclaims it.
	RequestTimeout config.TimeDuration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`

	// MaxQueueSize is the maximum number of requests waiting for a slot.
	MaxQueueSize int `mapstructure:"maxQueueSize" yaml:"maxQueueSize" json:"maxQueueSize"`

	// GracefulDegradation controls the degraded service mode reporting.
	GracefulDegradation GracefulDegradationConfig `mapstructure:"gracefulDegradation" yaml:"gracefulDegradation" json:"gracefulDegradation"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// GracefulDegradationConfig represents configuration parameters for the degraded service mode.
type GracefulDegradationConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// ThresholdPercent is the load percentage at which the controller reports ModeDegraded.
	ThresholdPercent int `mapstructure:"thresholdPercent" yaml:"thresholdPercent" json:"thresholdPercent"`
}

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		keyPrefix:             opts.keyPrefix,
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		RequestTimeout:        config.TimeDuration(DefaultRequestTimeout),
		MaxQueueSize:          DefaultMaxQueueSize,
		GracefulDegradation: GracefulDegradationConfig{
			Enabled:          defaultGracefulDegradationIsEnabled,
			ThresholdPercent: DefaultDegradationThresholdPercent,
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for Controller in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxConcurrentRequests, DefaultMaxConcurrentRequests)
	dp.SetDefault(cfgKeyRequestTimeout, DefaultRequestTimeout)
	dp.SetDefault(cfgKeyMaxQueueSize, DefaultMaxQueueSize)
	dp.SetDefault(cfgKeyGracefulDegradationEnabled, defaultGracefulDegradationIsEnabled)
	dp.SetDefault(cfgKeyGracefulDegradationThresholdPct, DefaultDegradationThresholdPercent)
}

// Set sets Controller configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxConcurrentRequests, err = dp.GetInt(cfgKeyMaxConcurrentRequests); err != nil {
		return err
	}
	if c.MaxConcurrentRequests <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxConcurrentRequests, fmt.Errorf("must be positive"))
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyRequestTimeout); err != nil {
		return err
	}
	if dur <= 0 {
		return dp.WrapKeyErr(cfgKeyRequestTimeout, fmt.Errorf("must be positive"))
	}
	c.RequestTimeout = config.TimeDuration(dur)

	if c.MaxQueueSize, err = dp.GetInt(cfgKeyMaxQueueSize); err != nil {
		return err
	}
	if c.MaxQueueSize < 0 {
		return dp.WrapKeyErr(cfgKeyMaxQueueSize, fmt.Errorf("must not be negative"))
	}

	if c.GracefulDegradation.Enabled, err = dp.GetBool(cfgKeyGracefulDegradationEnabled); err != nil {
		return err
	}
	if c.GracefulDegradation.ThresholdPercent, err = dp.GetInt(cfgKeyGracefulDegradationThresholdPct); err != nil {
		return err
	}
	if c.GracefulDegradation.ThresholdPercent <= 0 || c.GracefulDegradation.ThresholdPercent > 100 {
		return dp.WrapKeyErr(cfgKeyGracefulDegradationThresholdPct, fmt.Errorf("must be in range (0, 100]"))
	}

	return nil
}
