package audit

import (
	"time"
)

// AuditEvent names an action recorded on the audit stream.
type AuditEvent string

const (
	EventSubscribed   AuditEvent = "newsletter_subscribed"
	EventUnsubscribed AuditEvent = "newsletter_unsubscribed"
)

// Event is emitted from domain logic after a mutation succeeds. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	// Subject is the mailing-list member the action applied to (an email).
	Subject   string `json:"subject"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}
