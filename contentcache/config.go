/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package contentcache

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"
)

const cfgDefaultKeyPrefix = "contentCache"

const (
	cfgKeyDefaultTTL         = "defaultTTL"
	cfgKeyPriorityMultiplier = "priorityMultiplier"
	cfgKeyMaxEntries         = "maxEntries"
)

// Default configuration values.
const (
	DefaultTTL                = time.Hour
	DefaultPriorityMultiplier = 2.0
	DefaultMaxEntries         = 10000
)

// Config represents a set of configuration parameters for Manager.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// DefaultTTL is the relative TTL assigned to normal-priority writes.
	DefaultTTL config.TimeDuration `mapstructure:"defaultTTL" yaml:"defaultTTL" json:"defaultTTL"`

	// PriorityMultiplier scales the TTL spread between priorities.
	PriorityMultiplier float64 `mapstructure:"priorityMultiplier" yaml:"priorityMultiplier" json:"priorityMultiplier"`

	// MaxEntries bounds the number of stored entries. Zero means unbounded.
	MaxEntries int `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

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
		keyPrefix:          opts.keyPrefix,
		DefaultTTL:         config.TimeDuration(DefaultTTL),
		PriorityMultiplier: DefaultPriorityMultiplier,
		MaxEntries:         DefaultMaxEntries,
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

// SetProviderDefaults sets default configuration values for Manager in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyDefaultTTL, DefaultTTL)
	dp.SetDefault(cfgKeyPriorityMultiplier, DefaultPriorityMultiplier)
	dp.SetDefault(cfgKeyMaxEntries, DefaultMaxEntries)
}

// Set sets Manager configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyDefaultTTL); err != nil {
		return err
	}
	if dur <= 0 {
		return dp.WrapKeyErr(cfgKeyDefaultTTL, fmt.Errorf("must be positive"))
	}
	c.DefaultTTL = config.TimeDuration(dur)

	if c.PriorityMultiplier, err = dp.GetFloat64(cfgKeyPriorityMultiplier); err != nil {
		return err
	}
	if c.PriorityMultiplier <= 0 {
		return dp.WrapKeyErr(cfgKeyPriorityMultiplier, fmt.Errorf("must be positive"))
	}

	if c.MaxEntries, err = dp.GetInt(cfgKeyMaxEntries); err != nil {
		return err
	}
	if c.MaxEntries < 0 {
		return dp.WrapKeyErr(cfgKeyMaxEntries, fmt.Errorf("must not be negative"))
	}

	return nil
}

// Strategy converts the configuration into a runtime Strategy.
func (c *Config) Strategy() Strategy {
	return Strategy{
		DefaultTTL:         time.Duration(c.DefaultTTL),
		PriorityMultiplier: c.PriorityMultiplier,
		MaxEntries:         c.MaxEntries,
	}
}
