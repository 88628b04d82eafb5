package app

import (
	"fmt"

	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/storage"
	"paypal-gateway/internal/storage/postgres"
	"paypal-gateway/internal/storage/sqlite"
)

func (app *App) initializeStorage() error {
	var (
		store storage.Store
		err   error
	)

	if app.Config.IsPostgres() {
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "port", Value: app.Config.PostgresPort},
			logging.Field{Key: "database", Value: app.Config.PostgresDB},
		)
		store, err = postgres.NewAdapter(app.Config.PostgresDSN())
	} else {
		dbPath := app.Config.DatabasePath
		if dbPath == "" {
			dbPath = "./paypal_gateway.db"
		}
		app.Logger.Info("Database: SQLite", logging.Field{Key: "path", Value: dbPath})
		store, err = sqlite.NewAdapter(dbPath)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Storage = store
	return nil
}
