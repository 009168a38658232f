// Command reconcile backfills platform commissions for delivered orders and
// expires stale pending referrals. Run it from cron; it is safe to repeat.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/config"
	"github.com/d60-Lab/market-ledger/internal/cache"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/internal/service"
	"github.com/d60-Lab/market-ledger/pkg/database"
	"github.com/d60-Lab/market-ledger/pkg/logger"
)

func main() {
	limit := flag.Int("limit", 500, "max delivered orders to scan")
	expire := flag.Bool("expire-referrals", true, "also expire pending referrals past their deadline")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

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

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatal("init database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	store := repository.NewStore(db)
	notifications := service.NewNotificationService(store)
	commissions := service.NewCommissionService(
		store,
		service.NewRatePolicy(store.Commissions, decimal.NewFromFloat(cfg.Commission.DefaultRate)),
		cache.NewSummaryCache(rdb, cfg.Redis.SummaryTTL),
		notifications,
	)

	res, err := commissions.ReconcileDeliveredOrders(ctx, *limit)
	if err != nil {
		log.Fatal("reconcile commissions", zap.Error(err))
	}
	log.Info("commission reconcile done",
		zap.Int("scanned", res.Scanned),
		zap.Int("repaired", res.Repaired),
		zap.Int("created", res.Created),
		zap.Strings("failed", res.Failed))

	if *expire {
		referrals := service.NewReferralService(
			store,
			service.NewProductDirectory(store.Products),
			service.NewDeliveredRevenueSource(store.Orders),
			service.ReferralPolicyFromConfig(cfg.Referral),
		)
		n, err := referrals.ExpireReferrals(ctx, time.Now())
		if err != nil {
			log.Fatal("expire referrals", zap.Error(err))
		}
		log.Info("referral expiry done", zap.Int64("expired", n))
	}

	if len(res.Failed) > 0 {
		os.Exit(2)
	}
}
