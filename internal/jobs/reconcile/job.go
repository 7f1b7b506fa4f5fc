package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/domain/rules"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/notify"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/wayforpay"
)

type SubscriptionStore interface {
	ListActive(ctx context.Context) ([]postgres.SubscriptionRecord, error)
	MarkCancelRequested(ctx context.Context, userID int64) error
	Deactivate(ctx context.Context, userID int64, note string) (bool, error)
	DeactivateExpired(ctx context.Context, today, note string) (int64, error)
}

type GatewayClient interface {
	CheckStatus(ctx context.Context, orderReference string) (wayforpay.StatusResult, error)
}

// Job periodically re-anchors local subscription state to reality: the
// gateway is authoritative for renewal chains, the calendar is authoritative
// for paid-through access. Webhooks cover the happy path; this covers
// everything they missed.
type Job struct {
	subs     SubscriptionStore
	gateway  GatewayClient
	operator notify.OperatorNotifier
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewJob(subs SubscriptionStore, gateway GatewayClient, operator notify.OperatorNotifier, loc *time.Location, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	if operator == nil {
		operator = notify.Noop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Job{
		subs:     subs,
		gateway:  gateway,
		operator: operator,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

type SyncStats struct {
	Checked     int
	Flagged     int
	Deactivated int
	Skipped     int
	Failed      int
}

// SyncStatuses cross-checks every active subscription against the gateway.
// A dead renewal chain on a paid-up term only flips cancel_requested; access
// keeps running until the end date and the expiry sweep collects it. A dead
// chain past its end date is deactivated on the spot. Per-record failures
// are logged and skipped so one bad row cannot stall the batch.
func (j *Job) SyncStatuses(ctx context.Context) (SyncStats, error) {
	records, err := j.subs.ListActive(ctx)
	if err != nil {
		return SyncStats{}, fmt.Errorf("list active subscriptions: %w", err)
	}

	today := rules.DayKey(j.now(), j.loc)
	var stats SyncStats

	for _, record := range records {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		log := j.logger.With(zap.Int64("user_id", record.UserID))

		if record.LastPaymentOrderRef == nil || *record.LastPaymentOrderRef == "" {
			stats.Skipped++
			continue
		}
		stats.Checked++

		status, err := j.gateway.CheckStatus(ctx, *record.LastPaymentOrderRef)
		if err != nil {
			stats.Failed++
			log.Warn("gateway status check failed", zap.Error(err))
			continue
		}
		if status.Status == wayforpay.RegularStatusActive {
			continue
		}

		log = log.With(zap.String("gateway_status", status.Status))

		if record.SubscriptionEnd < today {
			note := fmt.Sprintf("sync: gateway status %s, term ended %s", status.Status, record.SubscriptionEnd)
			done, err := j.subs.Deactivate(ctx, record.UserID, note)
			if err != nil {
				stats.Failed++
				log.Warn("deactivate after sync", zap.Error(err))
				continue
			}
			if done {
				stats.Deactivated++
				log.Info("subscription deactivated by sync")
			}
			continue
		}

		if record.CancelRequested == 1 {
			// Already expected to stop; nothing to flag.
			continue
		}
		if err := j.subs.MarkCancelRequested(ctx, record.UserID); err != nil {
			stats.Failed++
			log.Warn("flag dead renewal chain", zap.Error(err))
			continue
		}
		stats.Flagged++
		log.Info("renewal chain dead at gateway, flagged")
	}

	return stats, nil
}

// SweepExpired deactivates every active subscription whose paid term ended
// before today.
func (j *Job) SweepExpired(ctx context.Context) (int64, error) {
	today := rules.DayKey(j.now(), j.loc)
	count, err := j.subs.DeactivateExpired(ctx, today, "expired: term ended before "+today)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		j.logger.Info("expired subscriptions deactivated", zap.Int64("count", count))
	}
	return count, nil
}

// RunOnce executes one full reconciliation cycle: sweep first so the sync
// pass only inspects terms that are still supposed to be alive.
func (j *Job) RunOnce(ctx context.Context) error {
	swept, err := j.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired: %w", err)
	}

	stats, err := j.SyncStatuses(ctx)
	if err != nil {
		return fmt.Errorf("sync statuses: %w", err)
	}

	j.logger.Info("reconciliation cycle finished",
		zap.Int64("swept", swept),
		zap.Int("checked", stats.Checked),
		zap.Int("flagged", stats.Flagged),
		zap.Int("deactivated", stats.Deactivated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))

	if stats.Failed > 0 {
		j.operator.NotifyOperator(ctx, fmt.Sprintf("reconciliation finished with %d failures (%d checked)", stats.Failed, stats.Checked))
	}

	return nil
}

// RunLoop repeats reconciliation cycles until the context ends. A cycle
// failure is logged and the loop keeps its schedule.
func (j *Job) RunLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := j.RunOnce(ctx); err != nil {
			j.logger.Error("reconciliation cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
