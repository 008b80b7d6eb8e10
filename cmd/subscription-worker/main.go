package main

import (
	"context"
	"time"

	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentSubscription)

	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend is private to this process; booked payments are not visible to the server")
	}
	result := cli.InitBackend(context.Background(), logger, cfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting subscription worker",
		"interval", cfg.SubscriptionInterval,
		"backend", cfg.DataBackend)

	run := func(now time.Time) {
		res, err := result.Subscriptions.ProcessDue(ctx, now)
		if err != nil {
			logger.Error("Subscription processing had failures", log.FieldError, err,
				"processed", res.Processed, "failed", res.Failed)
			return
		}
		logger.Info("Subscription processing complete",
			"processed", res.Processed,
			"skipped", res.Skipped,
			"next_check", now.Add(cfg.SubscriptionInterval).Format(time.TimeOnly))
	}
	run(time.Now())

	ticker := time.NewTicker(cfg.SubscriptionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}

