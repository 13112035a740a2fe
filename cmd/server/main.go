package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/concert-reservation/internal/config"
	"github.com/iliyamo/concert-reservation/internal/database"
	"github.com/iliyamo/concert-reservation/internal/handler"
	"github.com/iliyamo/concert-reservation/internal/logger"
	"github.com/iliyamo/concert-reservation/internal/middleware"
	"github.com/iliyamo/concert-reservation/internal/model"
	"github.com/iliyamo/concert-reservation/internal/queue"
	"github.com/iliyamo/concert-reservation/internal/repository"
	"github.com/iliyamo/concert-reservation/internal/router"
	"github.com/iliyamo/concert-reservation/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "concert-reservation"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("database migration failed", "error", err)
		}
	}
	users := repository.NewUserRepo(db)
	defaultUser, err := users.EnsureDefault(ctx, model.User{ID: cfg.DefaultUserID, Name: cfg.DefaultUserName})
	if err != nil {
		log.Fatal("seeding default user failed", "user_id", cfg.DefaultUserID, "error", err)
	}
	log.Info("default user ready", "user_id", defaultUser.ID, "user_name", defaultUser.Name)

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unavailable; response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	eventsCfg := config.LoadEventsConfig()
	publisher, err := queue.NewPublisher(eventsCfg, log.With("component", "publisher"))
	if err != nil {
		log.Warn("event publisher disabled", "broker", eventsCfg.Broker, "error", err)
		publisher = queue.NopPublisher{}
	}
	defer publisher.Close()

	consumerDone := make(chan struct{})
	if eventsCfg.ConsumerEnabled && eventsCfg.Broker == config.BrokerRabbitMQ {
		audit := queue.NewAuditLog(eventsCfg.ConsumerLogDir)
		go func() {
			defer close(consumerDone)
			err := queue.StartHistoryConsumer(ctx, eventsCfg.RabbitURL, eventsCfg.Queue, audit, log.With("component", "history-consumer"))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("history consumer stopped", "error", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	concerts := repository.NewConcertRepo(db)
	history := repository.NewHistoryRepo(db)
	txm := repository.NewTxManager(db)
	opts := []service.Option{
		service.WithLogger(log.With("component", "service")),
		service.WithPublisher(publisher),
		service.WithLocks(service.NewConcertLocks()),
		service.WithRetryPolicy(service.RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, Backoff: cfg.TxRetryBackoff}),
	}
	catalog := service.NewCatalogService(concerts, history, txm, opts...)
	reservations := service.NewReservationService(concerts, history, txm, opts...)
	historySvc := service.NewHistoryService(concerts, history)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(echomw.ContextTimeout(cfg.RequestTimeout))

	cacheCfg := config.LoadCacheConfig()
	cache := middleware.NewRedisCache(cacheCfg, rdb, log.With("component", "cache"))
	invalidate := middleware.NewCacheInvalidator(cacheCfg, rdb, log.With("component", "cache"))
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.With("component", "ratelimit"))

	router.RegisterRoutes(e, db)
	router.RegisterConcerts(e, handler.NewConcertHandler(catalog, historySvc, cfg.DisplayLocation(), log), cache, invalidate)
	router.RegisterUser(e, handler.NewReservationHandler(reservations, log), cfg.DefaultUserID, limiter, invalidate)

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	<-consumerDone
}
