//go:build integration

package subscription_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"newsletter/internal/newsletter/models"
	"newsletter/internal/newsletter/store/subscription"
	"newsletter/pkg/platform/sentinel"
	"newsletter/pkg/testutil/containers"
)

type store interface {
	Add(ctx context.Context, sub *models.Subscription) error
	Remove(ctx context.Context, email string) error
	List(ctx context.Context) ([]*models.Subscription, error)
	Ping(ctx context.Context) error
}

// storeContract runs the same assertions against every durable backend.
type storeContract struct {
	suite.Suite
	store store
	reset func(ctx context.Context) error
}

func (s *storeContract) SetupTest() {
	s.Require().NoError(s.reset(context.Background()))
}

func (s *storeContract) TestLifecycle() {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	s.Require().NoError(s.store.Add(ctx, models.NewSubscription("a@x.com", now)))
	s.ErrorIs(s.store.Add(ctx, models.NewSubscription("a@x.com", now)), sentinel.ErrAlreadyUsed)

	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("a@x.com", list[0].Email)
	s.True(list[0].SubscribedAt.Equal(now.UTC()))

	s.Require().NoError(s.store.Remove(ctx, "a@x.com"))
	s.ErrorIs(s.store.Remove(ctx, "a@x.com"), sentinel.ErrNotFound)

	list, err = s.store.List(ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *storeContract) TestOrdering() {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, e := range []string{"c@x.com", "b@x.com", "a@x.com"} {
		s.Require().NoError(s.store.Add(ctx, models.NewSubscription(e, base.Add(time.Duration(i)*time.Second))))
	}
	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("c@x.com", list[0].Email)
	s.Equal("a@x.com", list[2].Email)
}

func (s *storeContract) TestConcurrentAddSameEmail() {
	ctx := context.Background()
	const workers = 20
	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Add(ctx, models.NewSubscription("race@x.com", time.Now()))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflicts.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), successes.Load())
	s.Equal(int32(workers-1), conflicts.Load())
}

func (s *storeContract) TestConcurrentDistinctEmails() {
	ctx := context.Background()
	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.NoError(s.store.Add(ctx, models.NewSubscription(fmt.Sprintf("u%d@x.com", i), time.Now())))
		}(i)
	}
	wg.Wait()
	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(list, workers)
}

func TestPostgresStoreContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	st := subscription.NewPostgres(pg.DB)
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	suite.Run(t, &storeContract{
		store: st,
		reset: func(ctx context.Context) error {
			return pg.TruncateTables(ctx, "newsletter_subscriptions")
		},
	})
}

func TestRedisStoreContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &storeContract{
		store: subscription.NewRedis(rc.Client, "it"),
		reset: rc.FlushAll,
	})
}
