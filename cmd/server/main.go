package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/config"
	"github.com/d60-Lab/market-ledger/internal/api"
	"github.com/d60-Lab/market-ledger/internal/api/handler"
	"github.com/d60-Lab/market-ledger/internal/api/middleware"
	"github.com/d60-Lab/market-ledger/internal/cache"
	"github.com/d60-Lab/market-ledger/internal/events"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/internal/service"
	"github.com/d60-Lab/market-ledger/pkg/database"
	"github.com/d60-Lab/market-ledger/pkg/logger"
	"github.com/d60-Lab/market-ledger/pkg/tracing"
)

// @title Market Ledger API
// @version 1.0
// @description 订单履约、平台佣金与推荐计划账本服务
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey InternalKey
// @in header
// @name X-Internal-Key
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			log.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing)
	if err != nil {
		log.Fatal("init tracing", zap.Error(err))
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatal("init database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}
	summaries := cache.NewSummaryCache(rdb, cfg.Redis.SummaryTTL)

	store := repository.NewStore(db)
	products := service.NewProductDirectory(store.Products)

	notifications := service.NewNotificationService(store)
	dispatcher := service.NewAsyncDispatcher(notifications, cfg.Notification.QueueSize)
	stopDispatcher := dispatcher.Start(cfg.Notification.Workers)

	commissions := service.NewCommissionService(
		store,
		service.NewRatePolicy(store.Commissions, decimal.NewFromFloat(cfg.Commission.DefaultRate)),
		summaries,
		dispatcher,
	)
	// delivered 时同步计算佣金，失败的由 cmd/reconcile 补齐
	orders := service.NewOrderLifecycle(store, products, dispatcher, commissions)
	referrals := service.NewReferralService(
		store,
		products,
		service.NewDeliveredRevenueSource(store.Orders),
		service.ReferralPolicyFromConfig(cfg.Referral),
	)

	var stopRelay func(context.Context) error
	if cfg.Outbox.Enabled {
		pub, closePub, err := newPublisher(cfg.Outbox)
		if err != nil {
			log.Fatal("init event publisher", zap.Error(err))
		}
		defer closePub()

		mux := events.NewMux(pub)
		mux.Handle(model.EventOrderDelivered, referrals.HandleOrderDelivered)
		mux.Handle(model.EventOrderStatusChanged, referrals.HandleOrderStatusChanged)
		relay := service.NewOutboxRelay(store, mux, service.RelayOptions{
			Workers:      cfg.Outbox.Workers,
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
		})
		stopRelay = relay.Start()
	}

	h := handler.New(orders, commissions, referrals, notifications, map[string]handler.HealthCheck{
		"database": store.Ping,
		"redis":    summaries.Ping,
	})
	router := api.NewRouter(h, api.RouterOptions{
		Mode:            cfg.Server.Mode,
		ServiceName:     cfg.Tracing.ServiceName,
		Tracing:         cfg.Tracing.Enabled,
		Swagger:         cfg.Server.Mode != "release",
		JWTSecret:       cfg.JWT.Secret,
		JWTIssuer:       cfg.JWT.Issuer,
		InternalKeyHash: cfg.Internal.KeyHash,
		ReferralLimiter: middleware.NewKeyedLimiter(cfg.RateLimit.ReferralRPS, cfg.RateLimit.ReferralBurst),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	if stopRelay != nil {
		if err := stopRelay(ctx); err != nil {
			log.Warn("outbox relay stop", zap.Error(err))
		}
	}
	if err := stopDispatcher(ctx); err != nil {
		log.Warn("notification dispatcher stop", zap.Error(err), zap.Int("pending", dispatcher.QueueLen()))
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}

// newPublisher returns Kafka when brokers are configured, otherwise a log sink.
func newPublisher(cfg config.OutboxConfig) (events.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		logger.Warn("outbox has no brokers configured, events are only logged")
		return events.LogPublisher{}, func() {}, nil
	}
	kp, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	return kp, func() { _ = kp.Close() }, nil
}
