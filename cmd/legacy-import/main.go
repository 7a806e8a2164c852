// Command legacy-import moves inline scheduled-email-id maps exported from
// session records into the job store.
//
// Usage:
//
//	legacy-import -file sessions.csv [-dry-run] [-max-rows 10000]
//
// The CSV needs session_id and scheduled_email_ids columns. Each session is
// resolved from the database so imported jobs get their send times and
// recipient names.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"SessionPulse/internal/config"
	"SessionPulse/internal/csvparser"
	"SessionPulse/internal/db"
	"SessionPulse/internal/email"
	"SessionPulse/internal/scheduler"
)

func main() {
	file := flag.String("file", "", "legacy CSV export")
	dryRun := flag.Bool("dry-run", false, "parse and resolve sessions without writing jobs")
	maxRows := flag.Int("max-rows", 10000, "maximum data rows to read")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		flag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Imports only print through the console dispatcher.
	cfg, err := config.Load(config.WithDispatchMode("console"))
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	rows, err := csvparser.ParseFile(*file, *maxRows)
	if err != nil && len(rows) == 0 {
		logger.Fatal("failed to parse legacy export", zap.Error(err))
	}
	if err != nil {
		logger.Warn("some rows were skipped", zap.Error(err))
	}

	pgStore, pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	var store scheduler.JobStore = pgStore
	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		store = db.NewRedisStore(client)
	case "memory":
		logger.Fatal("legacy import needs a durable job store")
	default:
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal("job store migration failed", zap.Error(err))
		}
	}

	renderer, err := email.NewRenderer(cfg.AppBaseURL, cfg.Location())
	if err != nil {
		logger.Fatal("failed to load email templates", zap.Error(err))
	}
	svc := scheduler.New(store, &email.ConsoleDispatcher{Log: logger}, renderer, logger)
	sessions := db.NewSessionRepository(pool)

	var imported, failed int
	for _, row := range rows {
		log := logger.With(zap.String("session_id", row.SessionID), zap.Int("line", row.Line))

		session, err := sessions.GetSessionDetail(ctx, row.SessionID)
		if err != nil {
			log.Warn("session not resolved", zap.Error(err))
			failed++
			continue
		}

		if *dryRun {
			log.Info("would import", zap.Int("entries", len(row.IDs)))
			continue
		}

		n, err := svc.ImportLegacy(ctx, session, row.IDs)
		imported += n
		if err != nil {
			log.Error("import failed", zap.Error(err))
			failed++
			continue
		}
		log.Info("session imported", zap.Int("jobs", n))
	}

	logger.Info("legacy import finished",
		zap.Int("rows", len(rows)),
		zap.Int("jobs_imported", imported),
		zap.Int("rows_failed", failed),
		zap.Bool("dry_run", *dryRun),
	)

	if failed > 0 {
		os.Exit(1)
	}
}
