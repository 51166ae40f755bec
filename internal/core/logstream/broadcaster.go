// Package logstream turns log events produced anywhere in the process into
// independent push streams for any number of subscribers.
//
// Producers append to a single unbounded FIFO and never block. One consumer
// loop (Run) drains that queue and copies every event into the queue of
// each subscriber connected at delivery time, so every subscriber sees every
// event in append order. Neither queue is bounded: a stalled consumer or a
// subscriber that never reads grows memory without limit.
package logstream

import (
	"context"
	"iter"
	"sync"

	"github.com/melih/lighthouse-runner/internal/core/domain"
)

// Broadcaster fans log events out to subscribers.
type Broadcaster struct {
	// deliverMu serialises deliveries so batches reach subscribers in order.
	deliverMu sync.Mutex

	mu     sync.Mutex
	queue  []domain.LogEvent
	subs   map[*Subscription]struct{}
	closed bool
	notify chan struct{}
}

// NewBroadcaster creates a broadcaster. Events are only delivered while Run
// is executing.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		notify: make(chan struct{}, 1),
	}
}

// Publish appends ev to the queue. It never blocks. Events published after
// Close are dropped.
func (b *Broadcaster) Publish(ev domain.LogEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	signal(b.notify)
}

// Run delivers queued events to subscribers until ctx is done. It is meant
// to run in its own goroutine for the lifetime of the process.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.notify:
		}
		b.deliver()
	}
}

func (b *Broadcaster) deliver() {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, ev := range batch {
		for _, s := range subs {
			s.push(ev)
		}
	}
}

// Subscribe registers a new subscriber. The subscription receives every
// event delivered after this call returns.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		b:      b,
		notify: make(chan struct{}, 1),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Subscribers returns the number of connected subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close delivers any queued events, stops accepting new ones and ends
// every subscription. Events already buffered in a subscription can still
// be read.
func (b *Broadcaster) Close() {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	batch := b.queue
	b.queue = nil
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for s := range subs {
		for _, ev := range batch {
			s.push(ev)
		}
		s.close()
	}
}

func (b *Broadcaster) unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one subscriber's ordered view of the event stream.
type Subscription struct {
	b       *Broadcaster
	mu      sync.Mutex
	pending []domain.LogEvent
	closed  bool
	notify  chan struct{}
}

func (s *Subscription) push(ev domain.LogEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	signal(s.notify)
}

// Next blocks until an event is available, the subscription is closed or
// ctx is done. Buffered events are returned before ErrSubscriptionClosed.
func (s *Subscription) Next(ctx context.Context) (domain.LogEvent, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending[0] = domain.LogEvent{}
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return domain.LogEvent{}, domain.ErrSubscriptionClosed
		}

		select {
		case <-ctx.Done():
			return domain.LogEvent{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Events returns the subscription as a sequence that ends when the
// subscription is closed or ctx is done.
func (s *Subscription) Events(ctx context.Context) iter.Seq[domain.LogEvent] {
	return func(yield func(domain.LogEvent) bool) {
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Close detaches the subscription from its broadcaster.
func (s *Subscription) Close() {
	s.b.unsubscribe(s)
	s.close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	signal(s.notify)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
