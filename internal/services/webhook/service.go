package webhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/domain/enums"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/domain/rules"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/notify"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/wayforpay"
)

type SubscriptionStore interface {
	ExtendApproved(ctx context.Context, in postgres.ExtendInput) (postgres.SubscriptionRecord, bool, error)
}

type AttemptStore interface {
	UpsertFromWebhook(ctx context.Context, orderReference string, userID int64, status string, payload []byte) (postgres.PaymentAttemptRecord, error)
}

type UsageStore interface {
	GrantUnlimitedToday(ctx context.Context, userID int64, dayKey, monthKey string) error
}

type ReplayMarker interface {
	MarkProcessed(ctx context.Context, orderReference, status string) (bool, error)
	Clear(ctx context.Context, orderReference, status string) error
}

// Service reconciles inbound gateway notifications into billing state. Every
// delivery gets a signed acknowledgment, whatever happened inside: an
// unacknowledged delivery just comes back, and a broken one comes back
// forever.
type Service struct {
	codec           wayforpay.Codec
	merchantAccount string
	subs            SubscriptionStore
	attempts        AttemptStore
	usage           UsageStore
	replay          ReplayMarker
	users           notify.UserNotifier
	operator        notify.OperatorNotifier
	loc             *time.Location
	now             func() time.Time
	logger          *zap.Logger
}

type Deps struct {
	Codec           wayforpay.Codec
	MerchantAccount string
	Subscriptions   SubscriptionStore
	Attempts        AttemptStore
	Usage           UsageStore
	Replay          ReplayMarker
	Users           notify.UserNotifier
	Operator        notify.OperatorNotifier
	Location        *time.Location
	Logger          *zap.Logger
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Users == nil {
		deps.Users = notify.Noop{}
	}
	if deps.Operator == nil {
		deps.Operator = notify.Noop{}
	}
	return &Service{
		codec:           deps.Codec,
		merchantAccount: deps.MerchantAccount,
		subs:            deps.Subscriptions,
		attempts:        deps.Attempts,
		usage:           deps.Usage,
		replay:          deps.Replay,
		users:           deps.Users,
		operator:        deps.Operator,
		loc:             deps.Location,
		now:             time.Now,
		logger:          deps.Logger,
	}
}

// Process runs one delivery through the pipeline and returns the
// acknowledgment to serve. It never returns an error: failure modes degrade
// to an ack without state change.
func (s *Service) Process(ctx context.Context, body []byte) wayforpay.Ack {
	now := s.now()

	n, err := wayforpay.ParseNotification(body)
	if err != nil {
		ref := wayforpay.SalvageOrderReference(body)
		s.logger.Warn("unparseable webhook body",
			zap.String("order_reference", ref),
			zap.Int("body_len", len(body)),
			zap.Error(err))
		return s.codec.NewAck(ref, now.Unix())
	}

	log := s.logger.With(
		zap.String("order_reference", n.OrderReference),
		zap.String("transaction_status", n.TransactionStatus))

	if s.merchantAccount != "" && n.MerchantAccount != "" && n.MerchantAccount != s.merchantAccount {
		log.Warn("webhook for foreign merchant account")
		return s.codec.NewAck(n.OrderReference, now.Unix())
	}

	if !s.codec.VerifyNotification(n) {
		log.Warn("webhook signature mismatch")
		return s.codec.NewAck(n.OrderReference, now.Unix())
	}

	userID, err := n.UserID()
	if err != nil {
		log.Warn("webhook user identity unresolvable", zap.Error(err))
		return s.codec.NewAck(n.OrderReference, now.Unix())
	}
	log = log.With(zap.Int64("user_id", userID))

	// Every authenticated delivery is recorded, replays included: the
	// attempt row is the audit trail of what the gateway actually sent.
	attempt, err := s.attempts.UpsertFromWebhook(ctx, n.OrderReference, userID, n.TransactionStatus, body)
	if err != nil {
		log.Error("record webhook delivery", zap.Error(err))
		s.alertOperator(fmt.Sprintf("webhook for %s could not be recorded: %v", n.OrderReference, err))
		return s.codec.NewAck(n.OrderReference, now.Unix())
	}

	if s.replay != nil {
		first, err := s.replay.MarkProcessed(ctx, n.OrderReference, n.TransactionStatus)
		if err != nil {
			log.Warn("replay cache unavailable", zap.Error(err))
		}
		if !first {
			log.Info("webhook replay short-circuited")
			return s.codec.NewAck(n.OrderReference, now.Unix())
		}
	}

	if err := s.apply(ctx, n, attempt, userID, now, log); err != nil {
		log.Error("apply webhook", zap.Error(err))
		// Roll the marker back so the gateway's redelivery retries the
		// business effect; the order-reference SQL guard keeps a duplicate
		// success harmless.
		if s.replay != nil {
			if clearErr := s.replay.Clear(ctx, n.OrderReference, n.TransactionStatus); clearErr != nil {
				log.Warn("clear replay marker", zap.Error(clearErr))
			}
		}
		s.alertOperator(fmt.Sprintf("webhook for %s acknowledged but not applied: %v", n.OrderReference, err))
	}

	return s.codec.NewAck(n.OrderReference, now.Unix())
}

func (s *Service) apply(ctx context.Context, n wayforpay.Notification, attempt postgres.PaymentAttemptRecord, userID int64, now time.Time, log *zap.Logger) error {
	switch n.TransactionStatus {
	case wayforpay.StatusApproved:
		return s.applyApproved(ctx, n, attempt, userID, now, log)
	case wayforpay.StatusDeclined, wayforpay.StatusExpired:
		log.Info("payment failed", zap.String("reason", n.Reason))
		s.notifyUser(notify.Event{
			UserID:         userID,
			Kind:           notify.KindPaymentDeclined,
			OrderReference: n.OrderReference,
			Reason:         n.Reason,
		})
		return nil
	case wayforpay.StatusRefunded:
		log.Info("payment refunded")
		s.alertOperator(fmt.Sprintf("refund received for %s (user %d)", n.OrderReference, userID))
		return nil
	default:
		// Pending and anything the gateway invents later: recorded, no state.
		log.Info("webhook recorded without state change")
		return nil
	}
}

func (s *Service) applyApproved(ctx context.Context, n wayforpay.Notification, attempt postgres.PaymentAttemptRecord, userID int64, now time.Time, log *zap.Logger) error {
	plan := resolvePlan(n.OrderReference, attempt.PlanType)
	today := rules.DayKey(now, s.loc)

	switch plan {
	case enums.PlanSubscription:
		in := postgres.ExtendInput{
			UserID:         userID,
			Today:          today,
			OrderReference: n.OrderReference,
			Status:         n.TransactionStatus,
			RecToken:       optional(n.RecToken),
			CardMasked:     optional(n.CardPan),
			PaymentSystem:  optional(n.PaymentSystem),
			IssuerBank:     optional(n.IssuerBankName),
		}
		record, extended, err := s.subs.ExtendApproved(ctx, in)
		if err != nil {
			return fmt.Errorf("extend subscription: %w", err)
		}
		if !extended {
			log.Info("approved payment already applied")
			return nil
		}
		log.Info("subscription extended", zap.String("subscription_end", record.SubscriptionEnd))
		s.notifyUser(notify.Event{
			UserID:          userID,
			Kind:            notify.KindSubscriptionActivated,
			PlanType:        enums.PlanSubscription,
			SubscriptionEnd: record.SubscriptionEnd,
			OrderReference:  n.OrderReference,
		})
		return nil

	case enums.PlanSingle:
		if err := s.usage.GrantUnlimitedToday(ctx, userID, today, rules.MonthKey(now, s.loc)); err != nil {
			return fmt.Errorf("grant single-day access: %w", err)
		}
		log.Info("single-day access granted", zap.String("day", today))
		s.notifyUser(notify.Event{
			UserID:         userID,
			Kind:           notify.KindSingleGranted,
			PlanType:       enums.PlanSingle,
			OrderReference: n.OrderReference,
		})
		return nil

	default:
		return fmt.Errorf("approved payment with unknown plan, reference %q", n.OrderReference)
	}
}

// resolvePlan prefers the order-reference prefix and falls back to whatever
// the attempt row recorded at checkout time.
func resolvePlan(orderReference, attemptPlan string) string {
	if _, hint, err := wayforpay.ParseOrderReference(orderReference); err == nil && hint != "" {
		return hint
	}
	if enums.ValidPlanType(attemptPlan) {
		return attemptPlan
	}
	return ""
}

// notifyUser runs the bot delivery on a detached context so a slow bot
// endpoint cannot hold up the acknowledgment.
func (s *Service) notifyUser(ev notify.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.users.NotifyUser(ctx, ev)
	}()
}

func (s *Service) alertOperator(text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.operator.NotifyOperator(ctx, text)
	}()
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
