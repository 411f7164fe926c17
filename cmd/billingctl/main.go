package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	ledgerapp "github.com/pms/billing/internal/application/ledger"
	meteringapp "github.com/pms/billing/internal/application/metering"
	paymentapp "github.com/pms/billing/internal/application/payment"
	recyclebinapp "github.com/pms/billing/internal/application/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/backend"
	"github.com/pms/billing/internal/infrastructure/cache"
	"github.com/pms/billing/internal/infrastructure/config"
	"github.com/pms/billing/internal/infrastructure/logger"
	"github.com/pms/billing/internal/interfaces/cli"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Describe(err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stdout carries command output; logs go to stderr unless a file is configured
	output := cfg.Log.Output
	if output == "stdout" {
		output = "stderr"
	}
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	client, err := backend.NewClient(backend.Config{
		BaseURL:        cfg.Backend.BaseURL,
		Timeout:        cfg.Backend.Timeout,
		RateLimitRPS:   cfg.Backend.RateLimitRPS,
		RateLimitBurst: cfg.Backend.RateLimitBurst,
		UserAgent:      "billingctl/" + cfg.App.Version,
	}, backend.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	guard, err := cache.NewGuardFactory(cfg.Redis, cache.WithLogger(log)).CreateGuard()
	if err != nil {
		return fmt.Errorf("failed to create in-flight guard: %w", err)
	}
	defer func() {
		if err := guard.Close(); err != nil {
			log.Warn("Failed to close in-flight guard", zap.Error(err))
		}
	}()

	inflight := shared.InFlightConfig{
		TTL:     cfg.Billing.InFlightTTL,
		Enabled: cfg.Billing.InFlightEnabled,
	}

	app := &cli.App{
		Readings:   meteringapp.NewReadingService(client.Readings(), guard, inflight, nil, log),
		Ledger:     ledgerapp.NewLedgerService(client.Bills(), guard, inflight, nil, log),
		Payments:   paymentapp.NewAllocationService(client.Bills(), client.Payments(), guard, inflight, nil, log),
		RecycleBin: recyclebinapp.NewRecycleBinService(client.Trash(), guard, inflight, cfg.Billing.BulkConcurrency, nil, log),
		Token:      cfg.Backend.Token,
		Logger:     log,
	}

	return cli.NewRootCmd(app).Execute()
}
