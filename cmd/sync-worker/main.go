package main

import (
	"context"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
	ports "budget/internal/sheets"
	gsheet "budget/internal/sheets/google"
	mem "budget/internal/sheets/memory"
	"budget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend is private to this process; only its own transactions will be exported")
	}
	result := cli.InitBackend(context.Background(), logger, cfg)

	var exporter ports.TransactionExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled, exporting to memory")
	}

	// Without a broker the periodic sweep alone picks up pending rows.
	var consumer worker.Consumer
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, falling back to periodic sync", log.FieldError, err)
		} else {
			amqpClient = client
			consumer = client
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting sync worker",
		"interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize,
		"consumer", consumer != nil)

	syncWorker := worker.NewSyncWorker(result.Backend, exporter, cfg.SyncBatchSize)
	if err := syncWorker.Run(ctx, consumer, cfg.SyncInterval); err != nil {
		logger.Error("Sync worker stopped", log.FieldError, err)
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
