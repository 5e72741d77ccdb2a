package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// BillingRepository handles subscriptions and payments.
type BillingRepository struct {
	pool *pgxpool.Pool
}

// NewBillingRepository creates a new BillingRepository.
func NewBillingRepository(pool *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{pool: pool}
}

// CreateSubscription inserts a subscription and its payment in one transaction.
func (r *BillingRepository) CreateSubscription(ctx context.Context, s *model.Subscription, p *model.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO subscriptions (user_id, plan, status, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.UserID, s.Plan, s.Status, s.StartsAt, s.EndsAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return err
	}

	p.SubscriptionID = s.ID
	err = tx.QueryRow(ctx,
		`INSERT INTO payments (user_id, subscription_id, amount, currency, provider, phone_number, status, reference)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		p.UserID, p.SubscriptionID, p.Amount, p.Currency, p.Provider, p.PhoneNumber, p.Status, p.Reference,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ActiveSubscription returns the latest non-failed subscription still running at now.
func (r *BillingRepository) ActiveSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, plan, status, starts_at, ends_at, created_at
		 FROM subscriptions
		 WHERE user_id = $1 AND status <> 'failed' AND starts_at <= $2 AND ends_at > $2
		 ORDER BY ends_at DESC
		 LIMIT 1`, userID, now,
	).Scan(&s.ID, &s.UserID, &s.Plan, &s.Status, &s.StartsAt, &s.EndsAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListPayments returns a page of a user's payments, newest first.
func (r *BillingRepository) ListPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Payment, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, subscription_id, amount, currency, provider, phone_number, status, reference, created_at
		 FROM payments WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments := []model.Payment{}
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &p.Amount, &p.Currency, &p.Provider,
			&p.PhoneNumber, &p.Status, &p.Reference, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}
