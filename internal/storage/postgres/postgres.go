package postgres

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schema string

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     5432,
		User:     "blueprint",
		Password: "blueprint",
		Database: "blueprint",
		SSLMode:  "disable",
		MaxConns: 25,
		MaxIdle:  10,
	}
}

// Store is the PostgreSQL-backed persistence layer for assets, strategies,
// setups and scan runs.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// Connect opens the database, configures the pool, and applies the schema.
func Connect(cfg Config, log zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("connected to postgres")
	return &Store{db: db, log: log.With().Str("component", "storage").Logger()}, nil
}

// NewStore wraps an existing connection; used by tests with sqlmock-style
// drivers or pre-migrated databases.
func NewStore(db *sqlx.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "storage").Logger()}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
