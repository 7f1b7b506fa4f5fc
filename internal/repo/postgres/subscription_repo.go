package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

// SubscriptionRecord mirrors the subscriptions row: one document per user,
// civil dates rendered as YYYY-MM-DD strings in the billing timezone.
type SubscriptionRecord struct {
	UserID              int64
	IsActive            int
	SubscriptionStart   string
	SubscriptionEnd     string
	CancelRequested     int
	RecToken            *string
	LastPaymentOrderRef *string
	LastPaymentStatus   *string
	CardMasked          *string
	PaymentSystem       *string
	IssuerBank          *string
	LastSyncNote        *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ExtendInput carries everything an approved subscription payment writes.
type ExtendInput struct {
	UserID         int64
	Today          string // civil date the extension is anchored to
	OrderReference string
	Status         string
	RecToken       *string
	CardMasked     *string
	PaymentSystem  *string
	IssuerBank     *string
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

func (r *SubscriptionRepo) Get(ctx context.Context, userID int64) (SubscriptionRecord, error) {
	if r.pool == nil {
		return SubscriptionRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return SubscriptionRecord{}, fmt.Errorf("invalid user id")
	}

	record, err := scanSubscription(r.pool.QueryRow(ctx, subscriptionSelect+`
WHERE user_id = $1
LIMIT 1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SubscriptionRecord{}, ErrSubscriptionNotFound
		}
		return SubscriptionRecord{}, fmt.Errorf("get subscription: %w", err)
	}

	return record, nil
}

// ExtendApproved applies one approved subscription payment atomically.
// The new end chains from the stored end while the term is still active,
// otherwise restarts from today. The last_payment_order_ref guard makes
// gateway redeliveries of the same order a no-op: the second boolean reports
// whether this call actually extended the term.
func (r *SubscriptionRepo) ExtendApproved(ctx context.Context, in ExtendInput) (SubscriptionRecord, bool, error) {
	if r.pool == nil {
		return SubscriptionRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if in.UserID <= 0 || strings.TrimSpace(in.Today) == "" || strings.TrimSpace(in.OrderReference) == "" {
		return SubscriptionRecord{}, false, fmt.Errorf("invalid subscription extend payload")
	}

	record, err := scanSubscription(r.pool.QueryRow(ctx, `
INSERT INTO subscriptions (
	user_id,
	is_active,
	subscription_start,
	subscription_end,
	cancel_requested,
	rec_token,
	last_payment_order_ref,
	last_payment_status,
	card_masked,
	payment_system,
	issuer_bank,
	created_at,
	updated_at
) VALUES ($1, 1, $2::date, ($2::date + INTERVAL '1 month')::date, 0, $3, $4, $5, $6, $7, $8, NOW(), NOW())
ON CONFLICT (user_id) DO UPDATE SET
	is_active = 1,
	cancel_requested = 0,
	subscription_start = CASE
		WHEN subscriptions.is_active = 1 THEN subscriptions.subscription_start
		ELSE EXCLUDED.subscription_start
	END,
	subscription_end = (GREATEST(
		$2::date,
		CASE WHEN subscriptions.is_active = 1 THEN subscriptions.subscription_end ELSE $2::date END
	) + INTERVAL '1 month')::date,
	rec_token = COALESCE(EXCLUDED.rec_token, subscriptions.rec_token),
	last_payment_order_ref = EXCLUDED.last_payment_order_ref,
	last_payment_status = EXCLUDED.last_payment_status,
	card_masked = COALESCE(EXCLUDED.card_masked, subscriptions.card_masked),
	payment_system = COALESCE(EXCLUDED.payment_system, subscriptions.payment_system),
	issuer_bank = COALESCE(EXCLUDED.issuer_bank, subscriptions.issuer_bank),
	updated_at = NOW()
WHERE subscriptions.last_payment_order_ref IS DISTINCT FROM EXCLUDED.last_payment_order_ref
RETURNING user_id, is_active, subscription_start::text, subscription_end::text, cancel_requested,
	rec_token, last_payment_order_ref, last_payment_status, card_masked, payment_system,
	issuer_bank, last_sync_note, created_at, updated_at
`, in.UserID, in.Today, in.RecToken, in.OrderReference, in.Status, in.CardMasked, in.PaymentSystem, in.IssuerBank))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return SubscriptionRecord{}, false, fmt.Errorf("extend subscription: %w", err)
	}

	// Replay of an already-applied order reference: return current state.
	existing, err := r.Get(ctx, in.UserID)
	if err != nil {
		return SubscriptionRecord{}, false, err
	}
	return existing, false, nil
}

func (r *SubscriptionRepo) MarkCancelRequested(ctx context.Context, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE subscriptions
SET cancel_requested = 1, updated_at = NOW()
WHERE user_id = $1
`, userID)
	if err != nil {
		return fmt.Errorf("mark cancel requested: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

func (r *SubscriptionRepo) ListActive(ctx context.Context) ([]SubscriptionRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, subscriptionSelect+`
WHERE is_active = 1
ORDER BY user_id
`)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	defer rows.Close()

	var records []SubscriptionRecord
	for rows.Next() {
		record, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active subscription: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active subscriptions: %w", err)
	}

	return records, nil
}

// Deactivate flips a single subscription off and stamps the audit note.
func (r *SubscriptionRepo) Deactivate(ctx context.Context, userID int64, note string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return false, fmt.Errorf("invalid user id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE subscriptions
SET is_active = 0, last_sync_note = $2, updated_at = NOW()
WHERE user_id = $1 AND is_active = 1
`, userID, note)
	if err != nil {
		return false, fmt.Errorf("deactivate subscription: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeactivateExpired is the expiry backstop: every active subscription whose
// end date is strictly before today goes inactive, regardless of what the
// gateway thinks.
func (r *SubscriptionRepo) DeactivateExpired(ctx context.Context, today, note string) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(today) == "" {
		return 0, fmt.Errorf("today is required")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE subscriptions
SET is_active = 0, last_sync_note = $2, updated_at = NOW()
WHERE is_active = 1 AND subscription_end < $1::date
`, today, note)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired subscriptions: %w", err)
	}

	return tag.RowsAffected(), nil
}

const subscriptionSelect = `
SELECT user_id, is_active, subscription_start::text, subscription_end::text, cancel_requested,
	rec_token, last_payment_order_ref, last_payment_status, card_masked, payment_system,
	issuer_bank, last_sync_note, created_at, updated_at
FROM subscriptions
`

func scanSubscription(row pgx.Row) (SubscriptionRecord, error) {
	var record SubscriptionRecord
	if err := row.Scan(
		&record.UserID,
		&record.IsActive,
		&record.SubscriptionStart,
		&record.SubscriptionEnd,
		&record.CancelRequested,
		&record.RecToken,
		&record.LastPaymentOrderRef,
		&record.LastPaymentStatus,
		&record.CardMasked,
		&record.PaymentSystem,
		&record.IssuerBank,
		&record.LastSyncNote,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return SubscriptionRecord{}, err
	}
	return record, nil
}
