package memory

import (
	"context"
	"sync"

	audit "newsletter/pkg/platform/audit"
)

// Publisher keeps emitted events in memory. Used in tests and local runs
// without a broker.
type Publisher struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Emit(_ context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything emitted so far, oldest first.
func (p *Publisher) Events() []audit.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]audit.Event{}, p.events...)
}

// BySubject returns the events recorded for one subject.
func (p *Publisher) BySubject(subject string) []audit.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []audit.Event
	for _, e := range p.events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}

func (p *Publisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func (p *Publisher) Close() error {
	return nil
}
