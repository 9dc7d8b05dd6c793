// Package subscription holds the mailing-list stores. Each store makes
// Add and Remove atomic with respect to email uniqueness and reports the
// outcome with sentinel errors.
package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"newsletter/internal/newsletter/models"
	"newsletter/pkg/platform/sentinel"
)

// InMemory keeps subscriptions in a map guarded by one RWMutex. The
// check-and-insert in Add runs under the write lock.
type InMemory struct {
	mu   sync.RWMutex
	subs map[string]*models.Subscription
}

func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[string]*models.Subscription)}
}

func (s *InMemory) Add(_ context.Context, sub *models.Subscription) error {
	if sub == nil {
		return fmt.Errorf("subscription is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.Email]; ok {
		return sentinel.ErrAlreadyUsed
	}
	stored := *sub
	s.subs[sub.Email] = &stored
	return nil
}

func (s *InMemory) Remove(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[email]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.subs, email)
	return nil
}

// List returns copies ordered by subscription time, then email.
func (s *InMemory) List(_ context.Context) ([]*models.Subscription, error) {
	s.mu.RLock()
	out := make([]*models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		c := *sub
		out = append(out, &c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubscribedAt.Equal(out[j].SubscribedAt) {
			return out[i].SubscribedAt.Before(out[j].SubscribedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (s *InMemory) Ping(context.Context) error {
	return nil
}
