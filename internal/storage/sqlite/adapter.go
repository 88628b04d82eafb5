package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"paypal-gateway/internal/storage"
)

// Adapter stores options and the event journal in SQLite
type Adapter struct {
	db   *sql.DB
	path string
}

// NewAdapter opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func NewAdapter(path string) (*Adapter, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLite database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{db: db, path: path}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'done',
			received_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return err
		}
	}

	// journals created before claims existed only hold finished events
	var hasStatus int
	if err := a.db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('webhook_events') WHERE name = 'status'",
	).Scan(&hasStatus); err != nil {
		return err
	}
	if hasStatus == 0 {
		if _, err := a.db.Exec("ALTER TABLE webhook_events ADD COLUMN status TEXT NOT NULL DEFAULT 'done'"); err != nil {
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
	err := a.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (a *Adapter) SetOption(ctx context.Context, key, value string) error {
	_, err := a.db.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value, updated_at)
					  VALUES (?, ?, CURRENT_TIMESTAMP)`, key, value)
	return err
}

func (a *Adapter) DeleteOption(ctx context.Context, key string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

func (a *Adapter) RecordEvent(ctx context.Context, id, eventType string) (storage.EventState, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO webhook_events (id, event_type, status, received_at) VALUES (?, ?, 'pending', CURRENT_TIMESTAMP)",
		id, eventType)
	if err != nil {
		return "", err
	}
	claimed, err := result.RowsAffected()
	if err != nil {
		return "", err
	}

	if claimed == 0 {
		lease := fmt.Sprintf("-%d seconds", int(storage.PendingLease.Seconds()))
		result, err = tx.ExecContext(ctx,
			`UPDATE webhook_events SET event_type = ?, received_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status = 'pending' AND received_at < datetime('now', ?)`,
			eventType, id, lease)
		if err != nil {
			return "", err
		}
		if claimed, err = result.RowsAffected(); err != nil {
			return "", err
		}
	}

	if claimed == 0 {
		var status string
		err := tx.QueryRowContext(ctx, "SELECT status FROM webhook_events WHERE id = ?", id).Scan(&status)
		if err != nil {
			return "", err
		}
		return storage.EventState(status), tx.Commit()
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return storage.EventNew, nil
}

func (a *Adapter) CompleteEvent(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, "UPDATE webhook_events SET status = 'done' WHERE id = ?", id)
	return err
}

func (a *Adapter) ForgetEvent(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM webhook_events WHERE id = ?", id)
	return err
}
