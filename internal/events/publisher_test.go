package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	calls  int
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublish_WritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "orders", 3, time.Minute)

	e, err := New(TypeOrderPlaced, "chk-1", "acc-1", "rid-9", map[string]string{"total": "332.50"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "chk-1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, string(TypeOrderPlaced), string(msg.Headers[0].Value))

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "rid-9", got.CorrelationID)
	assert.JSONEq(t, `{"total":"332.50"}`, string(got.Data))
}

func TestPublish_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(w, "orders", 2, time.Hour)
	e, _ := New(TypeOrderStatusChanged, "o-1", "", "", nil)

	for i := 0; i < 2; i++ {
		err := p.Publish(context.Background(), e)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	err := p.Publish(context.Background(), e)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, w.calls, "open breaker must not reach the writer")
}

func TestNoopAndClose(t *testing.T) {
	var n Noop
	assert.NoError(t, n.Publish(context.Background(), Event{}))
	assert.NoError(t, n.Close())

	w := &fakeWriter{}
	require.NoError(t, newKafkaPublisher(w, "t", 1, time.Second).Close())
	assert.True(t, w.closed)
}
