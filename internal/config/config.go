// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
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

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// Bcrypt hash of the bearer token guarding the admin API
	AdminTokenHash string `mapstructure:"admintokenhash"`

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

	// Main store settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// DataOrbitZone store (Postgres). Empty disables the project.
	DataOrbitDSN string `mapstructure:"dataorbitdsn"`

	// SearchProject store (ClickHouse). Empty address disables the project.
	SearchProjectAddr     string `mapstructure:"searchprojectaddr"`
	SearchProjectDatabase string `mapstructure:"searchprojectdatabase"`
	SearchProjectUser     string `mapstructure:"searchprojectuser"`
	SearchProjectPassword string `mapstructure:"searchprojectpassword"`

	// Report cache (Redis). Empty disables the shared cache.
	RedisURL              string `mapstructure:"redisurl"`
	ReportCacheTTLSeconds int    `mapstructure:"reportcachettlseconds"`

	// Aggregation settings
	ProjectTimeoutSeconds int `mapstructure:"projecttimeoutseconds"`
	LookbackDays          int `mapstructure:"lookbackdays"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings
	EventsRetentionDays int `mapstructure:"eventsretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "topicmingle")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("searchprojectdatabase", "default")
		v.SetDefault("searchprojectuser", "default")
		v.SetDefault("reportcachettlseconds", 300)
		v.SetDefault("projecttimeoutseconds", 15)
		v.SetDefault("lookbackdays", 30)
		v.SetDefault("jobintervalseconds", 120)
		v.SetDefault("eventsretentiondays", 180)

		v.BindEnv("appname", "TOPICMINGLE_APP_NAME")
		v.BindEnv("appport", "TOPICMINGLE_APP_PORT")
		v.BindEnv("environment", "TOPICMINGLE_ENV")
		v.BindEnv("loglevel", "TOPICMINGLE_LOG_LEVEL")
		v.BindEnv("privatekey", "TOPICMINGLE_PRIVATE_KEY")
		v.BindEnv("admintokenhash", "TOPICMINGLE_ADMIN_TOKEN_HASH")
		v.BindEnv("storagepath", "TOPICMINGLE_STORAGE_PATH")
		v.BindEnv("geodbpath", "TOPICMINGLE_GEO_DB_PATH")
		v.BindEnv("publicdir", "TOPICMINGLE_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "TOPICMINGLE_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "TOPICMINGLE_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "TOPICMINGLE_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "TOPICMINGLE_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "TOPICMINGLE_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "TOPICMINGLE_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "TOPICMINGLE_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "TOPICMINGLE_DB_MAX_IDLE_CONNS")
		v.BindEnv("dataorbitdsn", "TOPICMINGLE_DATAORBIT_DSN")
		v.BindEnv("searchprojectaddr", "TOPICMINGLE_SEARCHPROJECT_ADDR")
		v.BindEnv("searchprojectdatabase", "TOPICMINGLE_SEARCHPROJECT_DATABASE")
		v.BindEnv("searchprojectuser", "TOPICMINGLE_SEARCHPROJECT_USER")
		v.BindEnv("searchprojectpassword", "TOPICMINGLE_SEARCHPROJECT_PASSWORD")
		v.BindEnv("redisurl", "TOPICMINGLE_REDIS_URL")
		v.BindEnv("reportcachettlseconds", "TOPICMINGLE_REPORT_CACHE_TTL_SECONDS")
		v.BindEnv("projecttimeoutseconds", "TOPICMINGLE_PROJECT_TIMEOUT_SECONDS")
		v.BindEnv("lookbackdays", "TOPICMINGLE_LOOKBACK_DAYS")
		v.BindEnv("jobintervalseconds", "TOPICMINGLE_JOB_INTERVAL_SECONDS")
		v.BindEnv("eventsretentiondays", "TOPICMINGLE_EVENTS_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique TOPICMINGLE_PRIVATE_KEY (cannot use default)")
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

	if c.DatabaseType != SQLiteDatabase {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}

	if c.ProjectTimeoutSeconds <= 0 {
		return fmt.Errorf("project timeout must be positive, got %d", c.ProjectTimeoutSeconds)
	}

	if c.LookbackDays < 0 {
		return fmt.Errorf("lookback days cannot be negative, got %d", c.LookbackDays)
	}

	return nil
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

// ProjectTimeout bounds a single project fetch.
func (c *Config) ProjectTimeout() time.Duration {
	return time.Duration(c.ProjectTimeoutSeconds) * time.Second
}

// ReportCacheTTL is how long a published report stays in Redis.
func (c *Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

// JobInterval is the refresh cadence of the background warm-up job.
func (c *Config) JobInterval() time.Duration {
	return time.Duration(c.JobIntervalSeconds) * time.Second
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

// GetMaxOpenConns returns MaxOpenConns, defaulting to 1 in test and 10 otherwise.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns MaxIdleConns, defaulting to 1 in test and 5 otherwise.
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
