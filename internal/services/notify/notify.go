package notify

import "context"

// Event kinds pushed to the bot after a webhook changes billing state.
const (
	KindSubscriptionActivated = "subscription_activated"
	KindSingleGranted         = "single_granted"
	KindPaymentDeclined       = "payment_declined"
	KindSubscriptionCancelled = "subscription_cancelled"
	KindSubscriptionExpired   = "subscription_expired"
)

// Event is the user-facing billing notification handed to the bot. The bot
// owns the wording and localization; this side only reports facts.
type Event struct {
	UserID          int64  `json:"user_id"`
	Kind            string `json:"kind"`
	PlanType        string `json:"plan_type,omitempty"`
	SubscriptionEnd string `json:"subscription_end,omitempty"`
	OrderReference  string `json:"order_reference,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// UserNotifier delivers billing events to the end user through the bot.
// Implementations are best effort: a delivery failure never fails the
// payment flow that triggered it.
type UserNotifier interface {
	NotifyUser(ctx context.Context, ev Event)
}

// OperatorNotifier raises alerts humans should see (gateway refusals,
// reconciliation anomalies).
type OperatorNotifier interface {
	NotifyOperator(ctx context.Context, text string)
}

// Noop satisfies both interfaces for deployments without a bot endpoint or
// operator chat configured.
type Noop struct{}

func (Noop) NotifyUser(context.Context, Event) {}

func (Noop) NotifyOperator(context.Context, string) {}
