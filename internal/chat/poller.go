// Package chat resolves doctor/patient chat sessions and streams their
// messages to the browser by polling the backend.
package chat

import (
	"context"
	"time"

	"healsync-portal/internal/backend"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
	"healsync-portal/internal/models"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxInterval = 30 * time.Second
)

// EventType tags an Event.
type EventType string

const (
	EventMessages EventType = "messages"
	EventError    EventType = "error"
)

// Event is one observation of a chat session.
type Event struct {
	Type     EventType            `json:"type"`
	Messages []models.ChatMessage `json:"messages,omitempty"`
	Count    int                  `json:"count"`
	// Error and RetryIn are set on EventError.
	Error   string        `json:"error,omitempty"`
	RetryIn time.Duration `json:"retryIn,omitempty"`
}

// MessageFetcher loads the full message list of a session.
type MessageFetcher interface {
	ListChatMessages(ctx context.Context, token, sessionID string) ([]models.ChatMessage, error)
}

// Poller re-fetches a session's messages and emits an event whenever the
// message count changes. Failures back off by doubling up to a cap; any
// success resets the delay.
type Poller struct {
	fetcher     MessageFetcher
	token       string
	sessionID   string
	logger      *logging.Logger
	metrics     *metrics.PortalMetrics
	interval    time.Duration
	maxInterval time.Duration
	after       func(time.Duration) <-chan time.Time
	events      chan Event
	lastCount   int
	seen        bool
}

func NewPoller(fetcher MessageFetcher, token, sessionID string, logger *logging.Logger, m *metrics.PortalMetrics) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{
		fetcher:     fetcher,
		token:       token,
		sessionID:   sessionID,
		logger:      logger.With("chat_session_id", sessionID),
		metrics:     m,
		interval:    DefaultInterval,
		maxInterval: DefaultMaxInterval,
		after:       time.After,
		events:      make(chan Event, 1),
	}
}

func (p *Poller) WithInterval(d time.Duration) *Poller {
	if d > 0 {
		p.interval = d
		if p.maxInterval < d {
			p.maxInterval = d
		}
	}
	return p
}

func (p *Poller) WithMaxInterval(d time.Duration) *Poller {
	if d >= p.interval {
		p.maxInterval = d
	}
	return p
}

// Events is closed when Run returns.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// NextDelay is the wait after a failed poll that followed a wait of current.
func NextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next <= 0 {
		return max
	}
	return next
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.events)
	delay := p.interval
	for {
		messages, err := p.fetcher.ListChatMessages(ctx, p.token, p.sessionID)
		if ctx.Err() != nil {
			return
		}
		var ev *Event
		if err != nil {
			delay = NextDelay(delay, p.maxInterval)
			p.metrics.ObserveChatPoll(false)
			p.logger.Warn("chat poll failed", "error", err, "retry_in", delay.String())
			ev = &Event{Type: EventError, Count: p.lastCount, Error: backend.UserMessage(err), RetryIn: delay}
		} else {
			delay = p.interval
			p.metrics.ObserveChatPoll(true)
			if !p.seen || len(messages) != p.lastCount {
				p.seen = true
				p.lastCount = len(messages)
				ev = &Event{Type: EventMessages, Messages: messages, Count: len(messages)}
			}
		}
		if ev != nil {
			select {
			case p.events <- *ev:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-p.after(delay):
		}
	}
}
