package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/registration"
	"github.com/tjfontaine/polyglot-persona/internal/runtime"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	path := os.Getenv("PERSONA_CONFIG_FILE")
	if path == "" {
		path = config.DefaultPath
	}

	// The level is read once at startup; hot reload only swaps providers.
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Logging.SlogLevel(),
	}))
	slog.SetDefault(logger)

	registration.RegisterBuiltins()

	app, err := runtime.New(
		runtime.WithConfigFile(path),
		runtime.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping service...")
	case err := <-app.Err():
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	os.Exit(exitCode)
}
