package models

import (
	"newsletter/pkg/email"
)

// SubscriptionRequest is the body of the subscribe and unsubscribe endpoints.
type SubscriptionRequest struct {
	Email string `json:"email"`
}

// Normalize applies the case policy and trims whitespace.
func (r *SubscriptionRequest) Normalize(policy email.CasePolicy) {
	r.Email = policy.Normalize(r.Email)
}

// Validate checks the request shape. Call after Normalize.
func (r *SubscriptionRequest) Validate() error {
	return email.Validate(r.Email)
}
