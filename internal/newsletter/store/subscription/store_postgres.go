package subscription

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"newsletter/internal/newsletter/models"
	"newsletter/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

const (
	insertSubscription = `
		INSERT INTO newsletter_subscriptions (email, subscribed_at)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING`
	deleteSubscription = `DELETE FROM newsletter_subscriptions WHERE email = $1`
	listSubscriptions  = `
		SELECT email, subscribed_at
		FROM newsletter_subscriptions
		ORDER BY subscribed_at, email`
)

// PostgresStore persists subscriptions in PostgreSQL. Uniqueness rests on the
// primary key: a conflicting insert affects zero rows instead of failing.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed subscription store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the subscriptions table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure subscription schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, sub *models.Subscription) error {
	if sub == nil {
		return fmt.Errorf("subscription is required")
	}
	res, err := s.db.ExecContext(ctx, insertSubscription, sub.Email, sub.SubscribedAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, deleteSubscription, email)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, listSubscriptions)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*models.Subscription, 0)
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.Email, &sub.SubscribedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.SubscribedAt = sub.SubscribedAt.UTC()
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}
