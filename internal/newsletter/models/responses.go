package models

// SubscriptionResponse is one mailing-list entry as returned over HTTP.
type SubscriptionResponse struct {
	Email string `json:"email"`
}

// ToResponses maps subscriptions to transfer objects. The result is never
// nil so an empty list encodes as [].
func ToResponses(subs []*Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, SubscriptionResponse{Email: s.Email})
	}
	return out
}
