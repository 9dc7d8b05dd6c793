package models

import (
	"errors"
	"time"
)

// Domain conditions surfaced by the service. They are wrapped in coded
// domain errors so callers can match either way.
var (
	ErrAlreadySubscribed = errors.New("email already subscribed")
	ErrNotSubscribed     = errors.New("email not subscribed")
)

// Subscription is one address on the mailing list.
//
// Invariants:
//   - Email is normalized under the configured case policy and valid
//   - At most one Subscription exists per Email
type Subscription struct {
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// NewSubscription builds a subscription for an already validated address.
func NewSubscription(email string, now time.Time) *Subscription {
	return &Subscription{Email: email, SubscribedAt: now.UTC()}
}
