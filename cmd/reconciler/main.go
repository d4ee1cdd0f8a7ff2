package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jasonlvhit/gocron"
	"github.com/rs/zerolog/log"

	"neighborhood_directory/internal/adapters/observability"
	redisad "neighborhood_directory/internal/adapters/redis"
	"neighborhood_directory/internal/app"
	"neighborhood_directory/internal/shared"
	mysqlrepo "neighborhood_directory/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger("reconciler", cfg.AppEnv)
	observability.Serve(cfg.MetricsAddr)

	log.Info().
		Int("workers", cfg.ReconcileWorkers).
		Dur("interval", cfg.ReconcileInterval).
		Msg("reconciler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.NewCache(redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB))
	svc := app.NewReconcileService(repo, repo, cache, cfg.ReconcileWorkers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func() {
		rep, err := svc.ReconcileAll(ctx)
		if err != nil {
			log.Error().Err(err).Msg("reconcile pass aborted")
			return
		}
		log.Info().
			Int64("checked", rep.Checked).
			Int64("repaired", rep.Repaired).
			Int64("failed", rep.Failed).
			Msg("reconcile pass completed")
	}

	run()
	if cfg.ReconcileInterval <= 0 {
		return
	}

	sched := gocron.NewScheduler()
	sched.Every(uint64(cfg.ReconcileInterval.Seconds())).Seconds().Do(run)
	stopped := sched.Start()
	<-ctx.Done()
	close(stopped)
	log.Info().Msg("reconciler stopped")
}
