package access

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/domain/rules"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
)

type SubscriptionStore interface {
	Get(ctx context.Context, userID int64) (postgres.SubscriptionRecord, error)
}

// Service answers "does this user have an active subscription right now".
// It is read-only and fail-closed: any lookup problem reads as no access,
// the bot then falls back to its free-tier limits.
type Service struct {
	subs   SubscriptionStore
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func NewService(subs SubscriptionStore, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{subs: subs, loc: loc, now: time.Now, logger: logger}
}

type Result struct {
	Active          bool   `json:"active"`
	SubscriptionEnd string `json:"subscription_end,omitempty"`
	CancelRequested bool   `json:"cancel_requested,omitempty"`
}

// Check reports the subscription state for the user. The end date is
// inclusive: a subscription ending today is still active today.
func (s *Service) Check(ctx context.Context, userID int64) Result {
	if userID <= 0 {
		return Result{}
	}

	record, err := s.subs.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, postgres.ErrSubscriptionNotFound) {
			s.logger.Warn("subscription lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return Result{}
	}

	if record.IsActive != 1 {
		return Result{}
	}

	today := rules.DayKey(s.now(), s.loc)
	if record.SubscriptionEnd < today {
		// Stored state lags the expiry sweep; never report stale access.
		return Result{}
	}

	return Result{
		Active:          true,
		SubscriptionEnd: record.SubscriptionEnd,
		CancelRequested: record.CancelRequested == 1,
	}
}
