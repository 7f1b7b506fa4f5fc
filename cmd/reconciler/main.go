package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/config"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/infra/logger"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/jobs/reconcile"
	pgrepo "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/notify"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/wayforpay"
)

// The reconciler runs as its own process (cron-style with sync_interval
// unset, long-lived with it set) so a stuck batch can never affect the
// webhook path.
func main() {
	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("init postgres", zap.Error(err))
	}
	defer pool.Close()

	loc, err := time.LoadLocation(cfg.Billing.Timezone)
	if err != nil {
		log.Warn("billing timezone unavailable, using UTC", zap.String("timezone", cfg.Billing.Timezone), zap.Error(err))
		loc = time.UTC
	}

	gatewayClient := wayforpay.NewClient(wayforpay.ClientConfig{
		APIURL:           cfg.Gateway.RegularAPIURL,
		MerchantAccount:  cfg.Gateway.MerchantAccount,
		MerchantPassword: cfg.Gateway.MerchantPassword,
		SecretKey:        cfg.Gateway.SecretKey,
		Timeout:          cfg.Gateway.RequestTimeout,
	})

	var operatorNotifier notify.OperatorNotifier = notify.Noop{}
	if cfg.Notify.BotToken != "" && cfg.Notify.OperatorChatID != 0 {
		if op, err := notify.NewTelegramOperator(cfg.Notify.BotToken, cfg.Notify.OperatorChatID, log); err != nil {
			log.Warn("operator bot init failed, alerts disabled", zap.Error(err))
		} else {
			operatorNotifier = op
		}
	}

	job := reconcile.NewJob(pgrepo.NewSubscriptionRepo(pool), gatewayClient, operatorNotifier, loc, log)

	if cfg.Jobs.SyncInterval <= 0 {
		if err := job.RunOnce(ctx); err != nil {
			log.Fatal("reconciliation run failed", zap.Error(err))
		}
		return
	}

	job.RunLoop(ctx, cfg.Jobs.SyncInterval)
}
