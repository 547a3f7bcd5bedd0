package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mstgnz/idpay/infra/config"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists payment profiles, purchase requests and payment logs
type Store struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex
}

// Open connects to the database selected by the application config
func Open(cfg *config.AppConfig) (*Store, error) {
	switch cfg.DBDriver {
	case DriverPostgres:
		return NewPostgresStore(cfg.DatabaseURL)
	case DriverSQLite, "":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}
}

// NewSQLiteStore opens (and creates if needed) a SQLite database at dbPath
func NewSQLiteStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db, driver: DriverSQLite}
	if err := store.initSchema(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("SQLite storage initialized at: %s", dbPath)
	return store, nil
}

// NewPostgresStore connects to PostgreSQL, retrying while the server comes up
func NewPostgresStore(dbURL string) (*Store, error) {
	var lastErr error

	for attempt := 1; attempt <= 5; attempt++ {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(2 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()

		if err == nil {
			store := &Store{db: db, driver: DriverPostgres}
			if err := store.initSchema(postgresSchema); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to initialize schema: %w", err)
			}
			log.Printf("PostgreSQL storage initialized")
			return store, nil
		}

		lastErr = err
		log.Printf("Attempt %d: Failed to ping DB: %v", attempt, err)
		db.Close()
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to database after 5 attempts: %w", lastErr)
}

// Driver returns the database driver in use
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) initSchema(statements []string) error {
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind converts ? placeholders to $n for PostgreSQL
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *Store) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !isBusy(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries {
			// Exponential backoff: 10ms, 20ms, 40ms
			backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
			log.Printf("SQLite busy, retrying in %v (attempt %d/%d)", backoff, attempt+1, maxRetries+1)
			time.Sleep(backoff)
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS payment_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id TEXT NOT NULL,
		title TEXT NOT NULL,
		options TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_key TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL DEFAULT 0,
		profile_id INTEGER NOT NULL,
		purchasable TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		cost_amount REAL NOT NULL,
		cost_currency TEXT NOT NULL,
		return_url TEXT NOT NULL DEFAULT '',
		cancel_url TEXT NOT NULL DEFAULT '',
		fulfilled INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS payment_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL DEFAULT '',
		gateway_id TEXT NOT NULL DEFAULT '',
		request_key TEXT NOT NULL DEFAULT '',
		purchase_request_id INTEGER NOT NULL DEFAULT 0,
		log_type TEXT NOT NULL,
		log_message TEXT NOT NULL DEFAULT '',
		log_details TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_logs_transaction ON payment_logs(transaction_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_logs_gateway ON payment_logs(gateway_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS payment_profiles (
		id BIGSERIAL PRIMARY KEY,
		provider_id VARCHAR(50) NOT NULL,
		title VARCHAR(100) NOT NULL,
		options TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_requests (
		id BIGSERIAL PRIMARY KEY,
		request_key VARCHAR(64) NOT NULL UNIQUE,
		user_id BIGINT NOT NULL DEFAULT 0,
		profile_id BIGINT NOT NULL REFERENCES payment_profiles(id),
		purchasable VARCHAR(100) NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		cost_amount DOUBLE PRECISION NOT NULL,
		cost_currency VARCHAR(3) NOT NULL,
		return_url TEXT NOT NULL DEFAULT '',
		cancel_url TEXT NOT NULL DEFAULT '',
		fulfilled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS payment_logs (
		id BIGSERIAL PRIMARY KEY,
		provider_id VARCHAR(50) NOT NULL,
		transaction_id VARCHAR(100) NOT NULL DEFAULT '',
		gateway_id VARCHAR(100) NOT NULL DEFAULT '',
		request_key VARCHAR(64) NOT NULL DEFAULT '',
		purchase_request_id BIGINT NOT NULL DEFAULT 0,
		log_type VARCHAR(20) NOT NULL,
		log_message TEXT NOT NULL DEFAULT '',
		log_details TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_logs_transaction ON payment_logs(transaction_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_logs_gateway ON payment_logs(gateway_id)`,
}
