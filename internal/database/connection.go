package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// Type returns the configured database backend, "sqlite" or "postgres".
func Type() string {
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}
	return dbType
}

// Connect establishes a connection to the database and initializes the schema.
func Connect() error {
	var db *sqlx.DB
	var err error

	switch Type() {
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
		db, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
	case "sqlite":
		dataDir := os.Getenv("DATA_DIR")
		if dataDir == "" {
			dataDir = "data"
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		dbPath := filepath.Join(dataDir, "vocabbot.db")
		db, err = sqlx.Connect("sqlite3", dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", Type())
	}

	DB = db
	return initializeSchema(db, Type())
}

// ConnectTest opens an in-memory sqlite database for tests.
func ConnectTest() error {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	DB = db
	return initializeSchema(db, "sqlite")
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB, dbType string) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if dbType == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			telegram_id BIGINT UNIQUE NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			active_vocab_set TEXT NOT NULL DEFAULT '',
			notification_enabled BOOLEAN NOT NULL DEFAULT true,
			notification_hour INTEGER NOT NULL DEFAULT 9,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, idColumn))
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS progress (
			id %s,
			learner_id BIGINT NOT NULL,
			item_id TEXT NOT NULL,
			repetitions INTEGER NOT NULL DEFAULT 0,
			ease_factor REAL NOT NULL DEFAULT 2.5,
			interval_minutes INTEGER NOT NULL DEFAULT 0,
			due_at TIMESTAMP NOT NULL,
			last_result TEXT NOT NULL DEFAULT 'new',
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(learner_id, item_id)
		)
	`, idColumn))
	if err != nil {
		return fmt.Errorf("failed to create progress table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_progress_due ON progress(learner_id, due_at)`)
	if err != nil {
		return fmt.Errorf("failed to create progress index: %w", err)
	}

	return nil
}
