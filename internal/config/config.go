package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/database"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(LevelForEnvironment(GetEnvWithDefault("APP_ENV", "development")))
}

// LevelForEnvironment maps APP_ENV onto a log level.
func LevelForEnvironment(environment string) logrus.Level {
	switch environment {
	case "development":
		return logrus.DebugLevel
	case "production":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Env      string `json:"env"`
	Port     int    `json:"port"`
	Host     string `json:"host"`
	LogLevel string `json:"log_level"`

	Database database.DatabaseConfig `json:"-"`

	// Signing key for access and refresh tokens. JWTSecretARN, when set, is
	// resolved through AWS Secrets Manager and takes precedence.
	JWTSecret    string `json:"-"`
	JWTSecretARN string `json:"jwt_secret_arn"`
	AWSRegion    string `json:"aws_region"`

	// Token lifetimes
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	AuthCodeTTL     time.Duration `json:"auth_code_ttl"`

	// Token policy
	RefreshTokenGracePeriod time.Duration `json:"refresh_token_grace_period"`
	LimitClientsToScopes    bool          `json:"limit_clients_to_scopes"`
	LimitClientsToGrants    bool          `json:"limit_clients_to_grants"`
	ScopeDelimiter          string        `json:"scope_delimiter"`
	DefaultScope            string        `json:"default_scope"`
	SettingsFile            string        `json:"settings_file"`

	// Optional integrations, disabled when empty
	RedisURL     string `json:"redis_url"`
	AMQPURL      string `json:"-"`
	AMQPExchange string `json:"amqp_exchange"`

	PruneInterval  time.Duration `json:"prune_interval"`
	MetricsEnabled bool          `json:"metrics_enabled"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Host: %s, Port: %d, LogLevel: %s, Database: %s, JWTSecret: [REDACTED], JWTSecretARN: %s, "+
		"AccessTokenTTL: %s, RefreshTokenTTL: %s, AuthCodeTTL: %s, RefreshTokenGracePeriod: %s, LimitClientsToScopes: %t, "+
		"LimitClientsToGrants: %t, ScopeDelimiter: %q, DefaultScope: %q, SettingsFile: %s, RedisURL: %s, AMQPURL: %s, "+
		"PruneInterval: %s, MetricsEnabled: %t}",
		c.Env, c.Host, c.Port, c.LogLevel, c.Database.String(), c.JWTSecretARN,
		c.AccessTokenTTL, c.RefreshTokenTTL, c.AuthCodeTTL, c.RefreshTokenGracePeriod, c.LimitClientsToScopes,
		c.LimitClientsToGrants, c.ScopeDelimiter, c.DefaultScope, c.SettingsFile, maskURL(c.RedisURL), maskURL(c.AMQPURL),
		c.PruneInterval, c.MetricsEnabled)
}

// Settings returns the token policy part of the configuration.
func (c *Config) Settings() auth.Settings {
	return auth.Settings{
		RefreshTokenGracePeriod: c.RefreshTokenGracePeriod,
		LimitClientsToScopes:    c.LimitClientsToScopes,
		LimitClientsToGrants:    c.LimitClientsToGrants,
	}
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct.
// Returns an error if any variable is malformed or out of range.
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")

	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config := &Config{
		Env:      GetEnvWithDefault("APP_ENV", "development"),
		Port:     port,
		Host:     GetEnvWithDefault("APP_HOST", "localhost"),
		LogLevel: GetEnvWithDefault("LOG_LEVEL", "info"),
		Database: database.DatabaseConfig{
			Driver:   GetEnvWithDefault("DB_DRIVER", "sqlite"),
			Host:     GetEnvWithDefault("DB_HOST", "localhost"),
			Port:     GetEnvWithDefault("DB_PORT", "5432"),
			User:     GetEnvWithDefault("DB_USER", "oauth"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     GetEnvWithDefault("DB_NAME", "oauth"),
			SSLMode:  GetEnvWithDefault("DB_SSLMODE", "disable"),
			Path:     GetEnvWithDefault("DB_PATH", "oauth.sqlite"),
		},
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTSecretARN:   os.Getenv("JWT_SECRET_ARN"),
		AWSRegion:      os.Getenv("AWS_REGION"),
		ScopeDelimiter: GetEnvWithDefault("SCOPE_DELIMITER", " "),
		DefaultScope:   os.Getenv("DEFAULT_SCOPE"),
		SettingsFile:   os.Getenv("OAUTH_SETTINGS_FILE"),
		RedisURL:       os.Getenv("REDIS_URL"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		AMQPExchange:   GetEnvWithDefault("AMQP_EXCHANGE", "oauth.revocations"),
		MetricsEnabled: GetEnvAsType("METRICS_ENABLED", true),
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", time.Hour, &config.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", 30 * 24 * time.Hour, &config.RefreshTokenTTL},
		{"AUTH_CODE_TTL", 10 * time.Minute, &config.AuthCodeTTL},
		{"REFRESH_TOKEN_GRACE_PERIOD", 0, &config.RefreshTokenGracePeriod},
		{"PRUNE_INTERVAL", 0, &config.PruneInterval},
	}
	for _, d := range durations {
		if *d.dest, err = GetEnvAsDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		key  string
		dest *bool
	}{
		{"LIMIT_CLIENTS_TO_SCOPES", &config.LimitClientsToScopes},
		{"LIMIT_CLIENTS_TO_GRANTS", &config.LimitClientsToGrants},
	}
	for _, b := range bools {
		if *b.dest, err = GetEnvAsBool(b.key, false); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Validate checks ranges and the combinations LoadConfig cannot check key by key.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "postgresql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("APP_PORT out of range: %d", c.Port)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.AuthCodeTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.RefreshTokenGracePeriod < 0 {
		return fmt.Errorf("REFRESH_TOKEN_GRACE_PERIOD must not be negative")
	}
	if c.PruneInterval < 0 {
		return fmt.Errorf("PRUNE_INTERVAL must not be negative")
	}
	if c.ScopeDelimiter == "" {
		return fmt.Errorf("SCOPE_DELIMITER must not be empty")
	}
	return nil
}

func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "[REDACTED]" + raw[at:]
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling. Malformed values fall back to the default.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	case time.Duration:
		d, err := parseDuration(value)
		if err != nil {
			return defaultValue
		}
		return any(d).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}

// GetEnvAsDuration reads a duration written either as a Go duration ("90s")
// or as a whole number of seconds ("90").
func GetEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := parseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// GetEnvAsBool is GetEnvAsType for booleans with malformed values reported.
func GetEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(value)
}
