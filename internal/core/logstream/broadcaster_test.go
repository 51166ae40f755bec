package logstream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})
	return b
}

func next(t *testing.T, s *Subscription) domain.LogEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	return ev
}

func TestSubscriberReceivesEventsInOrder(t *testing.T) {
	b := startBroadcaster(t)
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 200; i++ {
		b.Publish(domain.LogEvent{Message: fmt.Sprintf("line %d", i)})
	}

	for i := 0; i < 200; i++ {
		require.Equal(t, fmt.Sprintf("line %d", i), next(t, sub).Message)
	}
}

func TestEverySubscriberSeesEveryEvent(t *testing.T) {
	b := startBroadcaster(t)
	subs := []*Subscription{b.Subscribe(), b.Subscribe(), b.Subscribe()}
	require.Equal(t, 3, b.Subscribers())

	const n = 50
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			b.Publish(domain.LogEvent{Message: fmt.Sprintf("%d", i)})
		}
	}()

	for _, s := range subs {
		for i := 0; i < n; i++ {
			assert.Equal(t, fmt.Sprintf("%d", i), next(t, s).Message)
		}
	}
	wg.Wait()

	// Nothing is delivered twice.
	for _, s := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := s.Next(ctx)
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestUnsubscribedStopsReceiving(t *testing.T) {
	b := startBroadcaster(t)
	keep := b.Subscribe()
	gone := b.Subscribe()

	b.Publish(domain.LogEvent{Message: "first"})
	require.Equal(t, "first", next(t, keep).Message)
	require.Equal(t, "first", next(t, gone).Message)

	gone.Close()
	require.Equal(t, 1, b.Subscribers())

	b.Publish(domain.LogEvent{Message: "second"})
	require.Equal(t, "second", next(t, keep).Message)

	_, err := gone.Next(context.Background())
	require.ErrorIs(t, err, domain.ErrSubscriptionClosed)
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			b.Publish(domain.LogEvent{Message: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked without a running consumer")
	}
}

func TestCloseEndsSubscriptionsAfterBufferedEvents(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	sub := b.Subscribe()
	b.Publish(domain.LogEvent{Message: "buffered"})
	require.Eventually(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.pending) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	b.Close()

	require.Equal(t, "buffered", next(t, sub).Message)
	_, err := sub.Next(context.Background())
	require.ErrorIs(t, err, domain.ErrSubscriptionClosed)

	late := b.Subscribe()
	_, err = late.Next(context.Background())
	require.ErrorIs(t, err, domain.ErrSubscriptionClosed)
}

func TestEventsSequence(t *testing.T) {
	b := startBroadcaster(t)
	sub := b.Subscribe()

	for _, m := range []string{"a", "b", "c"} {
		b.Publish(domain.LogEvent{Message: m})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []string
	for ev := range sub.Events(ctx) {
		got = append(got, ev.Message)
		if len(got) == 3 {
			break
		}
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCloseFlushesQueuedEvents(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()

	// No consumer loop: the events only reach the subscriber through Close.
	b.Publish(domain.LogEvent{Message: "one"})
	b.Publish(domain.LogEvent{Message: "two"})
	b.Close()
	b.Publish(domain.LogEvent{Message: "dropped"})

	assert.Equal(t, "one", next(t, sub).Message)
	assert.Equal(t, "two", next(t, sub).Message)
	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubscriptionClosed)
}
