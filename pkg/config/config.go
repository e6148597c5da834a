/*
Package config loads the static client configuration: account credentials,
vehicle identifier, locale settings and feature flags.

Configuration is read once at startup and treated as immutable afterwards.
Values come from a config file (myt.yaml or myt.json), with MYT_-prefixed
environment variables taking precedence. The account password may be kept
out of the config file entirely and stored in the system keyring instead;
see [Config.ResolvePassword].
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jsalmi/mytgo/internal/log"
)

// ErrMissingField indicates a required configuration key is absent.
// Wrapped errors name the key.
var ErrMissingField = errors.New("missing required configuration value")

const (
	DefaultLocale   = "fi-fi"
	DefaultBrand    = "TOYOTA"
	DefaultCacheDir = "cache"
)

// Config holds the per-process client configuration.
type Config struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	VIN      string `mapstructure:"vin"`
	Timezone string `mapstructure:"timezone"`
	Locale   string `mapstructure:"locale"`
	Brand    string `mapstructure:"brand"`

	UseRemoteControl bool   `mapstructure:"use_remote_control"`
	UseInfluxDB      bool   `mapstructure:"use_influxdb"`
	InfluxDBURL      string `mapstructure:"influxdb_url"`

	CacheDir string `mapstructure:"cache_dir"`

	// KeyringPassword holds the file-backend keyring password when set via
	// $MYT_KEYRING_PASSWORD, avoiding an interactive prompt.
	KeyringPassword string `mapstructure:"keyring_password"`

	location *time.Location
}

// Load reads configuration from the given file (or the default search
// path when file is empty) and the environment.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("myt")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/mytgo")
	}
	v.SetEnvPrefix("MYT")
	v.AutomaticEnv()
	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range []string{
		"username", "password", "vin", "timezone",
		"use_remote_control", "use_influxdb", "keyring_password",
	} {
		v.BindEnv(key)
	}

	v.SetDefault("locale", DefaultLocale)
	v.SetDefault("brand", DefaultBrand)
	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("influxdb_url", "http://localhost:8086/write?db=tojota")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading configuration: %w", err)
		}
		// Not fatal on its own: the environment may carry everything.
		log.Debug("no configuration file found, relying on environment")
	} else {
		log.Debug("loaded configuration file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all required fields are present and the timezone
// resolves. The password is checked only after keyring resolution, so
// call [Config.ResolvePassword] first.
func (c *Config) Validate() error {
	for key, val := range map[string]string{
		"username": c.Username,
		"password": c.Password,
		"vin":      c.VIN,
		"timezone": c.Timezone,
	} {
		if val == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location returns the configured IANA timezone. Valid only after
// Validate has succeeded.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
