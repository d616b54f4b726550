package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/identity-service/internal/config"
	"github.com/iliyamo/identity-service/internal/database"
	"github.com/iliyamo/identity-service/internal/handler"
	"github.com/iliyamo/identity-service/internal/logger"
	"github.com/iliyamo/identity-service/internal/mail"
	"github.com/iliyamo/identity-service/internal/metrics"
	"github.com/iliyamo/identity-service/internal/middleware"
	"github.com/iliyamo/identity-service/internal/queue"
	"github.com/iliyamo/identity-service/internal/ratelimit"
	"github.com/iliyamo/identity-service/internal/repository"
	"github.com/iliyamo/identity-service/internal/router"
	"github.com/iliyamo/identity-service/internal/service"
	"github.com/iliyamo/identity-service/internal/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.IsDev(), Service: "identity-service", Env: cfg.Env})
	if err != nil {
		stdlog.Fatalf("init logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register(nil)

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpenConns, ConnMaxLifetime: cfg.DBConnMaxLife,
	})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rdb := config.NewRedisClient()
	var counters ratelimit.CounterStore
	if rdb != nil {
		defer rdb.Close()
		counters = ratelimit.NewRedisCounterStore(rdb)
	} else {
		log.Warn("redis unreachable: rate limiting fails open, profile cache off, activation codes unavailable")
	}
	limiter := ratelimit.New(counters, config.LoadRateLimitConfig(), log.Named("ratelimit"))
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log.Named("cache"))

	// Activation mail: the dispatcher either sends directly over SMTP or
	// publishes to RabbitMQ, where a consumer does the SMTP part.
	mailCfg := config.LoadMailConfig()
	direct := mail.NewDirectNotifier(mail.NewSMTPMailer(mailCfg, log.Named("mail")), mailCfg.AppName, cfg.OTPTTL)
	var outbound mail.Notifier = direct
	if mailCfg.Transport == "amqp" {
		outbound = queue.NewPublisher(mailCfg.AMQPURL, log.Named("queue"))
	}
	dispatcher := mail.NewDispatcher(outbound, mailCfg.Workers, mailCfg.QueueSize, mailCfg.Timeout, log.Named("mail"))

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), nil)
	users := repository.NewUserRepo(db)
	ledger := service.NewRefreshLedger(repository.NewTokenRepo(db), users, issuer, nil)
	auth := service.NewAuthService(users, ledger, issuer, service.NewRedisOTPStore(rdb, cfg.OTPTTL), dispatcher,
		service.AuthConfig{BcryptCost: cfg.BcryptCost, BypassVerify: cfg.BypassVerify}, log.Named("auth"))
	profiles := service.NewUserService(users, ledger, cache, nil, log.Named("users"))

	e := router.New(router.Deps{
		Log:     log,
		Issuer:  issuer,
		Users:   users,
		Gate:    middleware.GateConfig{PublicPaths: cfg.PublicPaths, Timeout: cfg.RequestTimeout},
		Limiter: limiter,
		Cache:   cache,
		Auth:    handler.NewAuthHandler(auth, cfg.RequestTimeout),
		Profile: handler.NewUserHandler(profiles, cfg.RequestTimeout),
		Admin:   handler.NewAdminHandler(profiles, limiter, cfg.RequestTimeout),
		Health:  handler.NewHealthHandler(db, rdb),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if mailCfg.Transport == "amqp" && mailCfg.Consume {
		g.Go(func() error {
			return queue.StartOTPConsumer(gctx, mailCfg.AMQPURL, direct, log.Named("queue"))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(sctx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		return dispatcher.Close(sctx)
	})
	return g.Wait()
}
