package main

import (
	"context"
	"time"

	"carteira/internal/cli"
	"carteira/internal/core"
	"carteira/internal/events"
	"carteira/internal/storage"
)

// The UI layer is an external collaborator: it calls the stores and reloads
// on change notifications. This binary bootstraps the data layer the same
// way, seeds it on first run and logs a summary, so the whole lifecycle can
// be exercised without any UI attached.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	db, stores, bus := cli.InitStores(logger, cfg)

	bus.Subscribe(events.TransactionsChanged, func() {
		logger.Debug("Change notification", "topic", events.TransactionsChanged.String())
	})
	bus.Subscribe(events.CategoriesChanged, func() {
		logger.Debug("Change notification", "topic", events.CategoriesChanged.String())
	})

	ctx := context.Background()

	// First store touch creates the schema and, on an empty database, seeds
	// the demo account with its sample data.
	transactions, err := stores.Transactions.AllTransactions(ctx)
	if err != nil {
		logger.Error("Failed to load transactions", "error", err)
		db.Close()
		return
	}

	current, err := stores.Session.CurrentUserID(ctx)
	if err != nil {
		logger.Error("Failed to read session", "error", err)
		db.Close()
		return
	}
	if current == "" && cfg.SeedDemoData {
		if err := stores.Session.SetCurrentUserID(ctx, storage.DemoUserID); err != nil {
			logger.Error("Failed to sign in demo user", "error", err)
			db.Close()
			return
		}
		current = storage.DemoUserID
	}

	logger.Info("Store ready",
		"path", cfg.SQLiteDBPath,
		"transactions", len(transactions),
		"session_user", current)

	if current != "" {
		summary, err := stores.Transactions.Summary(ctx, current)
		if err != nil {
			logger.Error("Failed to compute summary", "error", err)
		} else {
			logger.Info("Balance",
				"income", core.FormatBRL(summary.Income),
				"expense", core.FormatBRL(summary.Expense),
				"balance", core.FormatBRL(summary.Balance))
		}
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	})
	cli.WaitForShutdown(shutdownCtx, done)
}
