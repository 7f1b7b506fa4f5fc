package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageLimitRepo struct {
	pool *pgxpool.Pool
}

func NewUsageLimitRepo(pool *pgxpool.Pool) *UsageLimitRepo {
	return &UsageLimitRepo{pool: pool}
}

// GrantUnlimitedToday marks the user's current civil day as unmetered after a
// single-analysis purchase. A fresh row starts with zeroed counters and
// today as the first usage date; an existing row keeps whatever the bot
// already counted and only gains the flag. The bot writes the counter
// columns concurrently, so the conflict branch must touch nothing else.
func (r *UsageLimitRepo) GrantUnlimitedToday(ctx context.Context, userID int64, dayKey, monthKey string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(dayKey) == "" || strings.TrimSpace(monthKey) == "" {
		return fmt.Errorf("invalid usage grant payload")
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO usage_limits (user_id, day_key, dream_count, monthly_count, last_reset_month, first_usage_date, unlimited_today, updated_at)
VALUES ($1, $2, 0, 0, $3, $2::date, 1, NOW())
ON CONFLICT (user_id, day_key) DO UPDATE SET
	unlimited_today = 1,
	updated_at = NOW()
`, userID, dayKey, monthKey)
	if err != nil {
		return fmt.Errorf("grant unlimited today: %w", err)
	}

	return nil
}
