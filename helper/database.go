package helper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Environment variables read by NewDatabaseConfiguration.
const (
	EnvDatabaseHost     = "KGRAPH_DB_HOST"
	EnvDatabasePort     = "KGRAPH_DB_PORT"
	EnvDatabaseName     = "KGRAPH_DB_DATABASE"
	EnvDatabaseUsername = "KGRAPH_DB_USERNAME"
	EnvDatabasePassword = "KGRAPH_DB_PASSWORD"
	EnvDatabaseSchema   = "KGRAPH_DB_SCHEMA"
	EnvDatabaseSSLMode  = "KGRAPH_DB_SSLMODE"
)

// DatabaseConfiguration holds the connection settings for the graph store.
type DatabaseConfiguration struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Database string `json:"database" mapstructure:"database"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Schema   string `json:"schema" mapstructure:"schema"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

// NewDatabaseConfiguration reads the configuration from the environment.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment take precedence.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewError("load .env", err)
	}

	config := &DatabaseConfiguration{
		Host:     os.Getenv(EnvDatabaseHost),
		Port:     os.Getenv(EnvDatabasePort),
		Database: os.Getenv(EnvDatabaseName),
		Username: os.Getenv(EnvDatabaseUsername),
		Password: os.Getenv(EnvDatabasePassword),
		Schema:   os.Getenv(EnvDatabaseSchema),
		SSLMode:  os.Getenv(EnvDatabaseSSLMode),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and fills defaults for schema and sslmode.
func (c *DatabaseConfiguration) Validate() error {
	if c.Host == "" || c.Port == "" || c.Database == "" || c.Username == "" {
		return NewError("database configuration", fmt.Errorf("%w: host, port, database and username are required", ErrInvalidInput))
	}
	if c.Schema == "" {
		c.Schema = "public"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	return nil
}

// ConnectionURI renders the configuration as a postgres:// URI.
func (c *DatabaseConfiguration) ConnectionURI() string {
	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	if c.Schema != "" {
		query.Set("search_path", c.Schema)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Database is the shared handle every handler and stage receives.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens the connection pool and verifies it with a ping.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration validation", fmt.Errorf("%w: configuration is nil", ErrInvalidInput))
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	instance, err := sql.Open("postgres", config.ConnectionURI())
	if err != nil {
		return nil, NewError("open database", err)
	}
	instance.SetMaxOpenConns(20)
	instance.SetMaxIdleConns(5)
	instance.SetConnMaxIdleTime(5 * time.Minute)

	db := &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger.With(slog.String("database", name)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		_ = instance.Close()
		return nil, err
	}

	db.Logger.Info("Connected to database", slog.String("host", config.Host), slog.String("schema", config.Schema))

	return db, nil
}

// Ping checks that the datastore is reachable.
func (d *Database) Ping(ctx context.Context) error {
	if d == nil || d.Instance == nil {
		return NewError("ping", ErrDatastoreUnavailable)
	}
	if err := d.Instance.PingContext(ctx); err != nil {
		return NewError("ping", fmt.Errorf("%w: %w", ErrDatastoreUnavailable, err))
	}
	return nil
}

// Close closes the connection pool.
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
