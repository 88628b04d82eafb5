package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/config"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logging
	logging.InitGlobalLogger()
	defer logging.MustSync()

	logging.Info("Starting PayPal webhook gateway",
		logging.Field{Key: "cpus", Value: runtime.NumCPU()},
		logging.Field{Key: "version", Value: Version},
	)

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Close()

	srv := app.NewServer()
	serveErr, err := srv.Start()
	if err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	// Register once the callback route is being served
	app.Start(ctx)

	select {
	case <-ctx.Done():
		logging.Info("Shutting down server...")
	case err := <-serveErr:
		if err != nil {
			logging.Error("Server stopped unexpectedly", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}

	// Stop the retry scheduler after the last delivery has been answered
	if err := app.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Error during app shutdown", logging.Err(err))
	}

	logging.Info("Server exited")
	return nil
}
