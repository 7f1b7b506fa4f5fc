package cancel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/notify"
)

var ErrNoSubscription = errors.New("no subscription to cancel")

type SubscriptionStore interface {
	Get(ctx context.Context, userID int64) (postgres.SubscriptionRecord, error)
	MarkCancelRequested(ctx context.Context, userID int64) error
}

type GatewayClient interface {
	RemoveRecurring(ctx context.Context, orderReference, recToken string) error
}

// Service turns off auto-renewal. Access already paid for stays until the
// end date; only the recurring charge is removed. When the gateway refuses
// the removal, local state stays untouched so the user can retry.
type Service struct {
	subs     SubscriptionStore
	gateway  GatewayClient
	operator notify.OperatorNotifier
	logger   *zap.Logger
}

func NewService(subs SubscriptionStore, gateway GatewayClient, operator notify.OperatorNotifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if operator == nil {
		operator = notify.Noop{}
	}
	return &Service{subs: subs, gateway: gateway, operator: operator, logger: logger}
}

type Result struct {
	Cancelled       bool   `json:"cancelled"`
	SubscriptionEnd string `json:"subscription_end,omitempty"`
	TokenRemoved    bool   `json:"token_removed"`
}

// Cancel requests auto-renewal removal for the user's subscription.
func (s *Service) Cancel(ctx context.Context, userID int64) (Result, error) {
	if userID <= 0 {
		return Result{}, ErrNoSubscription
	}

	record, err := s.subs.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrSubscriptionNotFound) {
			return Result{}, ErrNoSubscription
		}
		return Result{}, fmt.Errorf("load subscription: %w", err)
	}
	if record.IsActive != 1 {
		return Result{}, ErrNoSubscription
	}

	log := s.logger.With(zap.Int64("user_id", userID))

	tokenRemoved := false
	if record.RecToken != nil && *record.RecToken != "" {
		// The removal request needs its own reference, not the purchase one.
		ref := fmt.Sprintf("order_%d_%s", userID, uuid.NewString())
		if err := s.gateway.RemoveRecurring(ctx, ref, *record.RecToken); err != nil {
			log.Error("recurring token removal refused", zap.Error(err))
			s.alertOperator(fmt.Sprintf("cancellation for user %d refused by gateway: %v", userID, err))
			return Result{}, fmt.Errorf("remove recurring token: %w", err)
		}
		tokenRemoved = true
		log.Info("recurring token removed at gateway")
	} else {
		log.Info("no recurring token on record, cancelling locally")
	}

	if err := s.subs.MarkCancelRequested(ctx, userID); err != nil {
		// The gateway side is already done; surface the local failure loudly.
		log.Error("mark cancel requested", zap.Error(err))
		s.alertOperator(fmt.Sprintf("user %d cancelled at gateway but local flag failed: %v", userID, err))
		return Result{}, fmt.Errorf("mark cancel requested: %w", err)
	}

	return Result{
		Cancelled:       true,
		SubscriptionEnd: record.SubscriptionEnd,
		TokenRemoved:    tokenRemoved,
	}, nil
}

func (s *Service) alertOperator(text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.operator.NotifyOperator(ctx, text)
	}()
}
