package securityaudit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher appends events to the trail and hands them to the log-channel
// worker. Persistence failures and a full inbox are logged, never propagated:
// audit must not block or fail the action being audited.
type Publisher struct {
	store  Store
	inbox  chan Event
	logger *slog.Logger
	clock  func() time.Time
}

type PublisherOption func(p *Publisher)

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.clock = clock
	}
}

func NewPublisher(store Store, inboxSize int, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		inbox:  make(chan Event, inboxSize),
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inbox is the channel the worker consumes.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Publish stamps, stores, and forwards the event.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.At.IsZero() {
		event.At = p.clock()
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "security audit append failed",
			"log_type", "audit",
			"kind", string(event.Kind),
			"error", err,
		)
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "security audit inbox full, log post dropped",
			"log_type", "audit",
			"kind", string(event.Kind),
		)
	}
}
