package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	// RedisURL enables cross-instance change notifications when set.
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	// PasswordCost is the bcrypt cost for new password hashes.
	PasswordCost int `mapstructure:"password_cost" yaml:"password_cost"`

	MaxMessageLength int           `mapstructure:"max_message_length" yaml:"max_message_length"`
	AlertDuration    time.Duration `mapstructure:"alert_duration" yaml:"alert_duration"`
	LoginPath        string        `mapstructure:"login_path" yaml:"login_path"`
	HomePath         string        `mapstructure:"home_path" yaml:"home_path"`
	// Timezone is an IANA name used to render message timestamps. Empty means the host zone.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "roomchat.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "roomchat",
		JWTAudience:       "roomchat",
		PasswordCost:      10,
		MaxMessageLength:  100,
		AlertDuration:     2200 * time.Millisecond,
		LoginPath:         "/login",
		HomePath:          "/home",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RedisURL != "" {
		c.RedisURL = other.RedisURL
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.PasswordCost != 0 {
		c.PasswordCost = other.PasswordCost
	}
	if other.MaxMessageLength != 0 {
		c.MaxMessageLength = other.MaxMessageLength
	}
	if other.AlertDuration != 0 {
		c.AlertDuration = other.AlertDuration
	}
	if other.LoginPath != "" {
		c.LoginPath = other.LoginPath
	}
	if other.HomePath != "" {
		c.HomePath = other.HomePath
	}
	if other.Timezone != "" {
		c.Timezone = other.Timezone
	}
}

// Location resolves Timezone, falling back to the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
