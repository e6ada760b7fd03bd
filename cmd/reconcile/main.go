package main

import (
	"context"
	"os"
	"time"

	"studiodesk/internal/config"
	"studiodesk/internal/database"
	"studiodesk/internal/logging"
	"studiodesk/internal/modules/ledger"
)

// reconcile checks every account once and exits 2 when any has drifted, so
// it can run from cron and alert on the exit code.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.GetLogger().WithError(err).Fatal("config load failed")
	}
	log := logging.Configure(os.Stdout, cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	svc := ledger.NewService(db, ledger.ExpensePolicy{EnforceFloor: cfg.ExpenseFloor}, nil, nil)
	drifted, err := svc.RunScheduledReconcile(ctx)
	if err != nil {
		log.WithError(err).Fatal("reconcile failed")
	}
	if drifted > 0 {
		cancel()
		os.Exit(2)
	}
}
