package config

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/logging"
	"github.com/spf13/viper"
)

const (
	envPrefix = "NEWSROOM"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultHTTPAddress    = "0.0.0.0:8000"
	defaultDatabaseDriver = DriverSQLite
	defaultDatabasePath   = "newsroom.db"
	defaultMaxOpenConns   = 10
	defaultGoogleClientID = "904165140417-upr6ca4hqgharv344ocq3dbrh7c3ns7k.apps.googleusercontent.com"
	defaultGoogleJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
	defaultPageCeiling    = 3
	defaultMaxUploadBytes = 32 << 20
	defaultStaticDir      = "server/public"
	defaultLogLevel       = "info"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string
	MaxOpenConns   int
	GoogleClientID string
	GoogleJWKSURL  string
	Admins         string
	PageCeiling    int
	MaxUploadBytes int64
	StaticDir      string
	LogLevel       string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()
	// The admin list has historically been supplied as a bare ADMINS variable.
	_ = configViper.BindEnv("admins", envPrefix+"_ADMINS", "ADMINS")

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	configViper.SetDefault("google.client_id", defaultGoogleClientID)
	configViper.SetDefault("google.jwks_url", defaultGoogleJWKSURL)
	configViper.SetDefault("posts.page_ceiling", defaultPageCeiling)
	configViper.SetDefault("uploads.max_bytes", defaultMaxUploadBytes)
	configViper.SetDefault("static.dir", defaultStaticDir)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabaseDriver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:   configViper.GetString("database.path"),
		DatabaseDSN:    configViper.GetString("database.dsn"),
		MaxOpenConns:   configViper.GetInt("database.max_open_conns"),
		GoogleClientID: strings.TrimSpace(configViper.GetString("google.client_id")),
		GoogleJWKSURL:  strings.TrimSpace(configViper.GetString("google.jwks_url")),
		Admins:         configViper.GetString("admins"),
		PageCeiling:    configViper.GetInt("posts.page_ceiling"),
		MaxUploadBytes: configViper.GetInt64("uploads.max_bytes"),
		StaticDir:      configViper.GetString("static.dir"),
		LogLevel:       configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.GoogleClientID == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if c.GoogleJWKSURL == "" {
		return fmt.Errorf("google.jwks_url is required")
	}
	if c.PageCeiling < 1 {
		return fmt.Errorf("posts.page_ceiling must be at least 1")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}
	if strings.TrimSpace(c.StaticDir) == "" {
		return fmt.Errorf("static.dir is required")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
