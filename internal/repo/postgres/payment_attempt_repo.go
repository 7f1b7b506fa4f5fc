package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAttemptNotFound = errors.New("payment attempt not found")

type PaymentAttemptRepo struct {
	pool *pgxpool.Pool
}

// PaymentAttemptRecord is one checkout or widget initiation, keyed by the
// opaque order reference. Rows are never deleted; webhooks upsert into them.
type PaymentAttemptRecord struct {
	OrderReference string
	UserID         int64
	PlanType       string
	Amount         int
	Currency       string
	Status         string
	Payload        map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewPaymentAttemptRepo(pool *pgxpool.Pool) *PaymentAttemptRepo {
	return &PaymentAttemptRepo{pool: pool}
}

func (r *PaymentAttemptRepo) Create(ctx context.Context, orderReference string, userID int64, planType string, amount int, currency, status string) (PaymentAttemptRecord, error) {
	if r.pool == nil {
		return PaymentAttemptRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(orderReference) == "" || userID <= 0 {
		return PaymentAttemptRecord{}, fmt.Errorf("invalid attempt create payload")
	}

	record, err := scanAttempt(r.pool.QueryRow(ctx, `
INSERT INTO payment_attempts (
	order_reference,
	user_id,
	plan_type,
	amount,
	currency,
	status,
	payload,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, '{}'::jsonb, NOW(), NOW())
RETURNING order_reference, user_id, plan_type, amount, currency, status, payload, created_at, updated_at
`, orderReference, userID, planType, amount, currency, status))
	if err != nil {
		return PaymentAttemptRecord{}, fmt.Errorf("create payment attempt: %w", err)
	}

	return record, nil
}

// UpsertFromWebhook records a gateway delivery against the attempt row,
// creating it when checkout bypassed this backend. Atomic single statement:
// concurrent retry deliveries for the same reference must not race.
func (r *PaymentAttemptRepo) UpsertFromWebhook(ctx context.Context, orderReference string, userID int64, status string, payload []byte) (PaymentAttemptRecord, error) {
	if r.pool == nil {
		return PaymentAttemptRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(orderReference) == "" {
		return PaymentAttemptRecord{}, fmt.Errorf("order reference is required")
	}
	if len(payload) == 0 || !json.Valid(payload) {
		payload = []byte("{}")
	}

	record, err := scanAttempt(r.pool.QueryRow(ctx, `
INSERT INTO payment_attempts (
	order_reference,
	user_id,
	plan_type,
	amount,
	currency,
	status,
	payload,
	created_at,
	updated_at
) VALUES ($1, $2, '', 0, '', $3, $4::jsonb, NOW(), NOW())
ON CONFLICT (order_reference) DO UPDATE SET
	status = EXCLUDED.status,
	payload = EXCLUDED.payload,
	user_id = CASE WHEN payment_attempts.user_id > 0 THEN payment_attempts.user_id ELSE EXCLUDED.user_id END,
	updated_at = NOW()
RETURNING order_reference, user_id, plan_type, amount, currency, status, payload, created_at, updated_at
`, orderReference, userID, status, string(payload)))
	if err != nil {
		return PaymentAttemptRecord{}, fmt.Errorf("upsert payment attempt from webhook: %w", err)
	}

	return record, nil
}

func (r *PaymentAttemptRepo) FindByReference(ctx context.Context, orderReference string) (PaymentAttemptRecord, error) {
	if r.pool == nil {
		return PaymentAttemptRecord{}, fmt.Errorf("postgres pool is nil")
	}

	record, err := scanAttempt(r.pool.QueryRow(ctx, `
SELECT order_reference, user_id, plan_type, amount, currency, status, payload, created_at, updated_at
FROM payment_attempts
WHERE order_reference = $1
LIMIT 1
`, orderReference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentAttemptRecord{}, ErrAttemptNotFound
		}
		return PaymentAttemptRecord{}, fmt.Errorf("find payment attempt: %w", err)
	}

	return record, nil
}

func scanAttempt(row pgx.Row) (PaymentAttemptRecord, error) {
	var (
		record     PaymentAttemptRecord
		rawPayload []byte
	)
	if err := row.Scan(
		&record.OrderReference,
		&record.UserID,
		&record.PlanType,
		&record.Amount,
		&record.Currency,
		&record.Status,
		&rawPayload,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PaymentAttemptRecord{}, err
	}
	record.Payload = decodeAttemptPayload(rawPayload)
	return record, nil
}

func decodeAttemptPayload(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return map[string]any{}
	}
	return payload
}
