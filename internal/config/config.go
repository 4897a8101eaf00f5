// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

const (
	defaultPrivateKey = "88888888888888888888888888888888"
	defaultIPHashSalt = "blogstats-development-salt"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Tracking settings
	IPHashSalt              string `mapstructure:"iphashsalt"`
	SiteDomain              string `mapstructure:"sitedomain"`
	DefaultCountry          string `mapstructure:"defaultcountry"`
	MaxVisitDurationSeconds int    `mapstructure:"maxvisitdurationseconds"`
	SettingsCacheTTLSeconds int    `mapstructure:"settingscachettlseconds"`
	QueryTokenHash          string `mapstructure:"querytokenhash"`

	// Job scheduling settings
	JobIntervalSeconds   int `mapstructure:"jobintervalseconds"`
	SessionRetentionDays int `mapstructure:"sessionretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "blogstats")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("iphashsalt", defaultIPHashSalt)
		v.SetDefault("sitedomain", "")
		v.SetDefault("defaultcountry", "Unknown")
		v.SetDefault("maxvisitdurationseconds", 1800)
		v.SetDefault("settingscachettlseconds", 300)
		v.SetDefault("querytokenhash", "")
		v.SetDefault("jobintervalseconds", 86400)
		v.SetDefault("sessionretentiondays", 365)

		v.BindEnv("appname", "BLOGSTATS_APP_NAME")
		v.BindEnv("appport", "BLOGSTATS_APP_PORT")
		v.BindEnv("environment", "BLOGSTATS_ENV")
		v.BindEnv("loglevel", "BLOGSTATS_LOG_LEVEL")
		v.BindEnv("privatekey", "BLOGSTATS_PRIVATE_KEY")
		v.BindEnv("storagepath", "BLOGSTATS_STORAGE_PATH")
		v.BindEnv("geodbpath", "BLOGSTATS_GEO_DB_PATH")
		v.BindEnv("publicdir", "BLOGSTATS_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "BLOGSTATS_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "BLOGSTATS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "BLOGSTATS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "BLOGSTATS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "BLOGSTATS_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "BLOGSTATS_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "BLOGSTATS_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "BLOGSTATS_DB_MAX_IDLE_CONNS")
		v.BindEnv("iphashsalt", "BLOGSTATS_IP_HASH_SALT")
		v.BindEnv("sitedomain", "BLOGSTATS_SITE_DOMAIN")
		v.BindEnv("defaultcountry", "BLOGSTATS_DEFAULT_COUNTRY")
		v.BindEnv("maxvisitdurationseconds", "BLOGSTATS_MAX_VISIT_DURATION_SECONDS")
		v.BindEnv("settingscachettlseconds", "BLOGSTATS_SETTINGS_CACHE_TTL_SECONDS")
		v.BindEnv("querytokenhash", "BLOGSTATS_QUERY_TOKEN_HASH")
		v.BindEnv("jobintervalseconds", "BLOGSTATS_JOB_INTERVAL_SECONDS")
		v.BindEnv("sessionretentiondays", "BLOGSTATS_SESSION_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()
		cfg.SiteDomain = NormalizeHost(cfg.SiteDomain)

		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique BLOGSTATS_PRIVATE_KEY (cannot use default)")
		}
		if cfg.IsProduction() && cfg.IPHashSalt == defaultIPHashSalt {
			log.Fatal("Production requires a unique BLOGSTATS_IP_HASH_SALT (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.IPHashSalt == "" {
		return fmt.Errorf("ip hash salt must not be empty")
	}
	if c.MaxVisitDurationSeconds <= 0 {
		return fmt.Errorf("max visit duration must be positive: %d", c.MaxVisitDurationSeconds)
	}

	return nil
}

// NormalizeHost lowercases a host and strips a scheme, port, path and leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// MaxVisitDuration is the upper bound applied to a single session's duration
// when averaging time on page.
func (c *Config) MaxVisitDuration() time.Duration {
	return time.Duration(c.MaxVisitDurationSeconds) * time.Second
}

// SettingsCacheTTL returns how long settings values are reused before being re-read.
func (c *Config) SettingsCacheTTL() time.Duration {
	if c.SettingsCacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.SettingsCacheTTLSeconds) * time.Second
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (concurrent reads for the dashboard fan-out)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
