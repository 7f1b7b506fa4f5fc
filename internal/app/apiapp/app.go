package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/config"
	pgrepo "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
	redrepo "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/redis"
	accesssvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/access"
	cancelsvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/cancel"
	checkoutsvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/checkout"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/notify"
	webhooksvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/webhook"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/wayforpay"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, cfg.HTTP.AllowedOrigins)

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	var redisClient *goredis.Client
	if c, err := redrepo.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Warn("redis init failed, webhook replay cache disabled", zap.Error(err))
	} else {
		redisClient = c
	}

	loc, err := time.LoadLocation(cfg.Billing.Timezone)
	if err != nil {
		log.Warn("billing timezone unavailable, using UTC", zap.String("timezone", cfg.Billing.Timezone), zap.Error(err))
		loc = time.UTC
	}

	attemptRepo := pgrepo.NewPaymentAttemptRepo(pool)
	subscriptionRepo := pgrepo.NewSubscriptionRepo(pool)
	usageRepo := pgrepo.NewUsageLimitRepo(pool)
	replayRepo := redrepo.NewReplayRepo(redisClient, 24*time.Hour)

	gatewayClient := wayforpay.NewClient(wayforpay.ClientConfig{
		APIURL:           cfg.Gateway.RegularAPIURL,
		MerchantAccount:  cfg.Gateway.MerchantAccount,
		MerchantPassword: cfg.Gateway.MerchantPassword,
		SecretKey:        cfg.Gateway.SecretKey,
		Timeout:          cfg.Gateway.RequestTimeout,
	})

	var userNotifier notify.UserNotifier = notify.Noop{}
	if cfg.Notify.BotEndpoint != "" {
		userNotifier = notify.NewHTTPNotifier(cfg.Notify.BotEndpoint, cfg.Notify.Timeout, log)
	}
	var operatorNotifier notify.OperatorNotifier = notify.Noop{}
	if cfg.Notify.BotToken != "" && cfg.Notify.OperatorChatID != 0 {
		if op, err := notify.NewTelegramOperator(cfg.Notify.BotToken, cfg.Notify.OperatorChatID, log); err != nil {
			log.Warn("operator bot init failed, alerts disabled", zap.Error(err))
		} else {
			operatorNotifier = op
		}
	}

	codec := wayforpay.NewCodec(cfg.Gateway.SecretKey, wayforpay.ParseMissingFieldMode(cfg.Gateway.MissingFieldMode))

	checkoutService := checkoutsvc.NewService(cfg, attemptRepo, loc, log)
	accessService := accesssvc.NewService(subscriptionRepo, loc, log)
	cancelService := cancelsvc.NewService(subscriptionRepo, gatewayClient, operatorNotifier, log)
	webhookService := webhooksvc.NewService(webhooksvc.Deps{
		Codec:           codec,
		MerchantAccount: cfg.Gateway.MerchantAccount,
		Subscriptions:   subscriptionRepo,
		Attempts:        attemptRepo,
		Usage:           usageRepo,
		Replay:          replayRepo,
		Users:           userNotifier,
		Operator:        operatorNotifier,
		Location:        loc,
		Logger:          log,
	})

	RegisterRoutes(r, Dependencies{
		CheckoutService: checkoutService,
		AccessService:   accessService,
		CancelService:   cancelService,
		WebhookService:  webhookService,
		Logger:          log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("payment api started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
