package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"newsletter/internal/newsletter/models"
	"newsletter/pkg/platform/sentinel"
)

// RedisStore keeps the mailing list in one sorted set. Members are emails and
// scores are subscription times in unix milliseconds, so ZRANGE yields the
// list oldest first with ties broken lexically by member.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedis constructs a Redis-backed subscription store under keyPrefix.
func NewRedis(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "newsletter"
	}
	return &RedisStore{client: client, key: keyPrefix + ":subscriptions"}
}

func (s *RedisStore) Add(ctx context.Context, sub *models.Subscription) error {
	if sub == nil {
		return fmt.Errorf("subscription is required")
	}
	added, err := s.client.ZAddNX(ctx, s.key, redis.Z{
		Score:  float64(sub.SubscribedAt.UnixMilli()),
		Member: sub.Email,
	}).Result()
	if err != nil {
		return fmt.Errorf("add subscription: %w", err)
	}
	if added == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, email string) error {
	removed, err := s.client.ZRem(ctx, s.key, email).Result()
	if err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	if removed == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*models.Subscription, error) {
	members, err := s.client.ZRangeWithScores(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	subs := make([]*models.Subscription, 0, len(members))
	for _, z := range members {
		email, ok := z.Member.(string)
		if !ok {
			continue
		}
		subs = append(subs, &models.Subscription{
			Email:        email,
			SubscribedAt: time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return subs, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}
