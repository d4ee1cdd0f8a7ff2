package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"neighborhood_directory/internal/adapters/events"
	"neighborhood_directory/internal/adapters/geocoder"
	server "neighborhood_directory/internal/adapters/http_server"
	"neighborhood_directory/internal/adapters/observability"
	redisad "neighborhood_directory/internal/adapters/redis"
	"neighborhood_directory/internal/app"
	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/search"
	"neighborhood_directory/internal/shared"
	"neighborhood_directory/internal/storage/memory"
	mysqlrepo "neighborhood_directory/internal/storage/mysql"
)

type stores struct {
	businesses domain.BusinessRepository
	reviews    domain.ReviewRepository
	users      domain.UserRepository
	ping       func(context.Context) error
}

func openStores(cfg shared.Config) stores {
	if cfg.Store == "memory" {
		log.Warn().Msg("using in-memory store; data is lost on exit")
		st := memory.New()
		return stores{businesses: st, reviews: st, users: st}
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	repo := mysqlrepo.New(db)
	return stores{businesses: repo, reviews: repo, users: repo, ping: db.PingContext}
}

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger("api", cfg.AppEnv)
	if err := cfg.ValidateForAPI(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	observability.Serve(cfg.MetricsAddr)

	st := openStores(cfg)

	var (
		cache    domain.Cache = app.NopCache{}
		sessions domain.SessionStore
	)
	if cfg.Store == "memory" {
		sessions = memory.NewSessions()
	} else {
		rc := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		cache = redisad.NewCache(rc)
		sessions = redisad.NewSessions(rc)
	}

	var publisher domain.EventPublisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("amqp dial failed")
		}
		defer p.Close()
		publisher = p
	}

	var geo domain.Geocoder
	if cfg.GeocoderBase != "" {
		g, err := geocoder.New(cfg.GeocoderBase, cfg.GeocoderRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize geocoder")
		}
		geo = g
	}

	// deps
	h := &server.Handlers{
		Directory: app.NewDirectoryService(st.businesses, st.reviews, cache, cfg.CacheTTL, search.New(cfg.Locale)),
		Reviews:   app.NewReviewService(st.businesses, st.reviews, cache, publisher),
		Auth:      app.NewAuthService(st.users, sessions, cache, cfg.JWTSecret, cfg.SessionTTL),
		Account:   app.NewAccountService(st.users, st.businesses),
		Owner:     app.NewOwnerService(st.businesses, cache, geo),
		Admin:     app.NewAdminService(st.businesses, st.users, cache, publisher),
	}

	// http
	srv := server.New()
	srv.SetReadiness(st.ping)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
