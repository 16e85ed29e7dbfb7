package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"clinic-console/internal/config"
	recordFlow "clinic-console/internal/flow/record"
	registryFlow "clinic-console/internal/flow/registry"
	scheduleFlow "clinic-console/internal/flow/schedule"
	appointmentHandler "clinic-console/internal/handler/appointment"
	authHandler "clinic-console/internal/handler/auth"
	patientHandler "clinic-console/internal/handler/patient"
	recordHandler "clinic-console/internal/handler/record"
	"clinic-console/internal/inflight"
	"clinic-console/internal/rest"
	"clinic-console/internal/router"
	"clinic-console/internal/session"
	"clinic-console/pkg/logger"
	"clinic-console/pkg/metrics"
)

func main() {
	// Local overrides, ignored when absent
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	tokens, err := newTokenStore(cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token store")
	}

	m := metrics.New("clinic_console")
	holder := session.NewHolder()
	client := rest.NewClient(rest.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout(),
		RateLimit: rate.Limit(cfg.Backend.RateLimit),
		RateBurst: cfg.Backend.RateBurst,
	}, holder, m, appLog)

	sessions := session.NewStore(client, holder, tokens, appLog)
	if err := sessions.Restore(context.Background()); err != nil {
		appLog.Error(err, "could not restore previous session")
	}

	guard := inflight.New(30 * time.Second)
	lazyRecords := recordFlow.NewFlow(client, guard, recordFlow.Options{AutoCreateOnMissing: false}, m, appLog)
	eagerRecords := recordFlow.NewFlow(client, guard, recordFlow.Options{AutoCreateOnMissing: true}, m, appLog)
	registry := registryFlow.NewFlow(client, guard, m, appLog)
	schedule := scheduleFlow.NewFlow(client, guard, m, appLog)

	r := router.New(m,
		authHandler.NewHandler(sessions),
		patientHandler.NewHandler(registry),
		recordHandler.NewHandler(lazyRecords, eagerRecords, cfg.Records.AutoCreateOnMissing),
		appointmentHandler.NewHandler(schedule, sessions),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLog.Info("console listening", "addr", srv.Addr, "backend", cfg.Backend.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
}

func newTokenStore(cfg config.SessionConfig) (session.TokenStore, error) {
	switch cfg.Store {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return session.NewRedisTokenStore(rdb), nil
	case "file", "":
		return session.NewFileTokenStore(cfg.TokenFile), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}
