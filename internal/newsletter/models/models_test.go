package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsletter/pkg/email"
)

func TestSubscriptionRequest(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		req := SubscriptionRequest{Email: "  Reader@Example.COM "}
		req.Normalize(email.CaseLower)
		assert.Equal(t, "reader@example.com", req.Email)
		assert.NoError(t, req.Validate())
	})

	t.Run("preserve keeps case", func(t *testing.T) {
		req := SubscriptionRequest{Email: " Reader@Example.COM"}
		req.Normalize(email.CasePreserve)
		assert.Equal(t, "Reader@Example.COM", req.Email)
	})

	t.Run("rejects malformed", func(t *testing.T) {
		req := SubscriptionRequest{Email: "not-an-email"}
		req.Normalize(email.CaseLower)
		assert.Error(t, req.Validate())
	})
}

func TestNewSubscriptionUsesUTC(t *testing.T) {
	local := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	sub := NewSubscription("a@x.com", local)
	assert.Equal(t, time.UTC, sub.SubscribedAt.Location())
	assert.True(t, sub.SubscribedAt.Equal(local))
}

func TestToResponsesEncodesEmptyAsArray(t *testing.T) {
	raw, err := json.Marshal(ToResponses(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	raw, err = json.Marshal(ToResponses([]*Subscription{{Email: "a@x.com", SubscribedAt: time.Now()}}))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"email":"a@x.com"}]`, string(raw))
}
