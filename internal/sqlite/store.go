// File path: internal/sqlite/store.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	// Register the pure-Go SQLite driver under the name "sqlite".
	_ "modernc.org/sqlite"
)

var (
	errNilStore = errors.New("sqlite store not initialised")

	// ErrStoreMissing reports that the database file disappeared after the
	// store was opened.
	ErrStoreMissing = errors.New("sqlite database file not found")
)

// Store wraps a pooled sqlx.DB connection to the dynamic laptop database.
type Store struct {
	db   *sqlx.DB
	path string
}

// Open constructs a Store backed by the SQLite database at the provided path.
// Missing tables are created on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	cfg.applyDefaults()
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if cfg.MustExist {
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("%w at %s", ErrStoreMissing, abs)
		}
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &Store{db: db, path: abs}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the absolute location of the database file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) ensureReady() error {
	if s == nil || s.db == nil {
		return errNilStore
	}
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("%w at %s", ErrStoreMissing, s.path)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS Laptop (
                sku TEXT PRIMARY KEY,
                brand TEXT NOT NULL,
                model_name TEXT NOT NULL,
                currency TEXT,
                availability TEXT,
                shipping_eta TEXT,
                review_count INTEGER,
                average_rating REAL
        );`,
	`CREATE TABLE IF NOT EXISTS PriceHistory (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                laptop_sku TEXT NOT NULL,
                price REAL NOT NULL,
                date TEXT NOT NULL,
                vendor_name TEXT,
                promo_badges TEXT,
                FOREIGN KEY(laptop_sku) REFERENCES Laptop(sku) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS Review (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                laptop_sku TEXT NOT NULL,
                rating INTEGER NOT NULL,
                review_text TEXT,
                date TEXT NOT NULL,
                source TEXT,
                FOREIGN KEY(laptop_sku) REFERENCES Laptop(sku) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS QuestionAnswer (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                laptop_sku TEXT NOT NULL,
                question_text TEXT NOT NULL,
                answer_text TEXT,
                date TEXT NOT NULL,
                source TEXT,
                FOREIGN KEY(laptop_sku) REFERENCES Laptop(sku) ON DELETE CASCADE
        );`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_sku_date ON PriceHistory(laptop_sku, date);`,
	`CREATE INDEX IF NOT EXISTS idx_review_sku_date ON Review(laptop_sku, date);`,
	`CREATE INDEX IF NOT EXISTS idx_qanda_sku_date ON QuestionAnswer(laptop_sku, date);`,
}
