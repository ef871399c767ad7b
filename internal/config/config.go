// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Mongo   MongoConfig
	Import  ImportConfig
	Sources SourcesConfig
	Server  ServerConfig
	Logging LoggingConfig
}

// MongoConfig holds target store connection settings.
type MongoConfig struct {
	// URI is the MongoDB connection string (required unless running offline)
	// Supports both MONGO_URI and MONGODB_URI env vars for compatibility
	URI string `env:"MONGO_URI" envAlt:"MONGODB_URI"`

	// Database is the database that receives all collections (default: proyecto2-db)
	Database string `env:"MONGO_DATABASE" default:"proyecto2-db"`

	// ConnectTimeout bounds the initial connection and ping (default: 10s)
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" default:"10s"`

	// OperationTimeout bounds a single bulk insert or index build (default: 60s)
	OperationTimeout time.Duration `env:"MONGO_OPERATION_TIMEOUT" default:"60s"`
}

// ImportConfig holds pipeline settings.
type ImportConfig struct {
	// Dir is the directory holding the five input files (default: current directory)
	Dir string `env:"IMPORT_DIR" default:"."`

	// BatchSize is the number of records per bulk insert (default: 1000)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"1000"`

	// RunsCollection receives one ledger document per finished run (default: import_runs)
	RunsCollection string `env:"IMPORT_RUNS_COLLECTION" default:"import_runs"`
}

// SourcesConfig names the input file and target collection of every entity kind.
type SourcesConfig struct {
	Users       SourceConfig `prefix:"IMPORT_USERS_"`
	Restaurants SourceConfig `prefix:"IMPORT_RESTAURANTS_"`
	MenuItems   SourceConfig `prefix:"IMPORT_MENU_ITEMS_"`
	Orders      SourceConfig `prefix:"IMPORT_ORDERS_"`
	Reviews     SourceConfig `prefix:"IMPORT_REVIEWS_"`
}

// SourceConfig overrides where one entity kind is read from and written to.
// Empty values fall back to the entity's built-in file and collection names.
type SourceConfig struct {
	File       string `env:"FILE"`
	Collection string `env:"COLLECTION"`
}

// ServerConfig holds run-control HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Overrides returns the non-empty file and collection overrides keyed by
// entity kind name, in the form the entity registry accepts.
func (c *SourcesConfig) Overrides() map[string]SourceConfig {
	all := map[string]SourceConfig{
		"users":       c.Users,
		"restaurants": c.Restaurants,
		"menu_items":  c.MenuItems,
		"orders":      c.Orders,
		"reviews":     c.Reviews,
	}
	out := make(map[string]SourceConfig, len(all))
	for kind, sc := range all {
		if sc.File != "" || sc.Collection != "" {
			out[kind] = sc
		}
	}
	return out
}
