package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"paypal-gateway/internal/storage"
)

// Adapter stores options and the event journal in PostgreSQL
type Adapter struct {
	db *sql.DB
}

// NewAdapter connects with pgx using a libpq keyword/value or URL connection
// string and migrates the schema.
func NewAdapter(connString string) (*Adapter, error) {
	connConfig, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL connection string: %w", err)
	}

	db := stdlib.OpenDB(*connConfig)
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

// NewAdapterFromEnv connects using POSTGRES_TEST_DSN; tests skip when it is unset
func NewAdapterFromEnv() (*Adapter, bool, error) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		return nil, false, nil
	}
	adapter, err := NewAdapter(dsn)
	return adapter, true, err
}

func (a *Adapter) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'done',
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`ALTER TABLE webhook_events ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'done'`,
	}

	for _, query := range queries {
		if _, err := a.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) GetOption(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := a.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (a *Adapter) SetOption(ctx context.Context, key, value string) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, key, value)
	return err
}

func (a *Adapter) DeleteOption(ctx context.Context, key string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM settings WHERE key = $1", key)
	return err
}

// RecordEvent claims id in one statement: a new row, or a pending row whose
// lease ran out, is (re)claimed and reported as new.
func (a *Adapter) RecordEvent(ctx context.Context, id, eventType string) (storage.EventState, error) {
	result, err := a.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, event_type, status, received_at) VALUES ($1, $2, 'pending', NOW())
		 ON CONFLICT (id) DO UPDATE SET event_type = EXCLUDED.event_type, received_at = NOW()
		 WHERE webhook_events.status = 'pending' AND webhook_events.received_at < NOW() - make_interval(secs => $3)`,
		id, eventType, storage.PendingLease.Seconds())
	if err != nil {
		return "", err
	}
	claimed, err := result.RowsAffected()
	if err != nil {
		return "", err
	}
	if claimed == 1 {
		return storage.EventNew, nil
	}

	var status string
	if err := a.db.QueryRowContext(ctx, "SELECT status FROM webhook_events WHERE id = $1", id).Scan(&status); err != nil {
		return "", err
	}
	return storage.EventState(status), nil
}

func (a *Adapter) CompleteEvent(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, "UPDATE webhook_events SET status = 'done' WHERE id = $1", id)
	return err
}

func (a *Adapter) ForgetEvent(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM webhook_events WHERE id = $1", id)
	return err
}
