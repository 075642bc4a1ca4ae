package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func (s *fakeStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := batchSize
	if n > len(s.pending) {
		n = len(s.pending)
	}
	out := s.pending[:n]
	s.pending = s.pending[n:]
	return out, nil
}

func (s *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[int64]string{}
	}
	s.failed[id] = errMsg
	return nil
}

func (s *fakeStore) ExtendLease(context.Context, string, []int64, time.Duration) error {
	return nil
}

type fakeProducer struct {
	msgs   []kafka.Message
	failOn string
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker unavailable")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestRelayRunOnceDispatchesAndMarks(t *testing.T) {
	store := &fakeStore{pending: []Event{
		{ID: 1, AggregateID: "pay-1", Type: "PaymentCompleted", Payload: []byte(`{"payment_id":"pay-1"}`), Traceparent: "00-abc-def-01", Headers: map[string]string{"source": "payment-engine"}},
		{ID: 2, AggregateID: "pay-2", Type: "PaymentFailed", Payload: []byte(`{}`)},
		{ID: 3, AggregateID: "pay-3", Type: "PaymentRefunded", Payload: []byte(`{}`)},
	}}
	producer := &fakeProducer{failOn: "pay-2"}
	relay := NewRelay(discard(), store, NewDispatcher(discard(), producer, "payment.events"), "relay-1")

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Contains(t, store.failed, int64(2))

	require.Len(t, producer.msgs, 2)
	first := producer.msgs[0]
	assert.Equal(t, "payment.events", first.Topic)
	assert.Equal(t, "pay-1", string(first.Key))
	assert.Equal(t, "PaymentCompleted", header(first, "event_type"))
	assert.Equal(t, "00-abc-def-01", header(first, "traceparent"))
	assert.Equal(t, "payment-engine", header(first, "source"))
	assert.Equal(t, "1", header(first, "attempt"))
	assert.Empty(t, header(producer.msgs[1], "traceparent"))
}

func TestRelayRunOnceEmpty(t *testing.T) {
	relay := NewRelay(discard(), &fakeStore{}, NewDispatcher(discard(), &fakeProducer{}, "t"), "relay-1")
	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	store := &fakeStore{pending: []Event{{ID: 7, AggregateID: "pay-7", Type: "PaymentCompleted"}}}
	producer := &fakeProducer{}
	relay := NewRelay(discard(), store, NewDispatcher(discard(), producer, "t"), "relay-1").WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.sent) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestLastAttempt(t *testing.T) {
	assert.False(t, Event{Attempts: 0}.LastAttempt())
	assert.True(t, Event{Attempts: MaxAttempts - 1}.LastAttempt())
}
