package kafka

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

	"github.com/wms-platform/pharmacy-inventory/pkg/cloudevents"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	fetchErr  error
	committed int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		r.mu.Unlock()
		return kafka.Message{}, r.fetchErr
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed += len(msgs)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

func testConfig() *Config {
	config := DefaultConfig()
	config.MaxConsecutiveErrors = 3
	config.ErrorBackoff = time.Millisecond
	return config
}

func TestConsumer_GivesUpAfterConsecutiveFetchErrors(t *testing.T) {
	reader := &fakeReader{fetchErr: errors.New("broker unreachable")}
	consumer := NewConsumerWithReaders(testConfig(), nil, func(string) MessageReader { return reader })
	consumer.SubscribeAll(Topics.ProductChanges, func(context.Context, *cloudevents.PharmacyCloudEvent) error {
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := consumer.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestConsumer_DispatchesByEventTypeAndCommits(t *testing.T) {
	factory := cloudevents.NewEventFactory(cloudevents.SourcePHPBackend)
	event := factory.CreateResourceChangedEvent(context.Background(), cloudevents.ProductChanged, "product", "42")
	value, err := json.Marshal(event)
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{
		{Value: value, Headers: []kafka.Header{{Key: "ce-pharmacycorrelationid", Value: []byte("corr-1")}}},
		{Value: []byte("not json")},
	}}
	consumer := NewConsumerWithReaders(testConfig(), nil, func(string) MessageReader { return reader })

	received := make(chan *cloudevents.PharmacyCloudEvent, 1)
	consumer.Subscribe(Topics.ProductChanges, cloudevents.ProductChanged, func(_ context.Context, e *cloudevents.PharmacyCloudEvent) error {
		received <- e
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Start(ctx) }()

	select {
	case got := <-received:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, "corr-1", got.CorrelationID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not dispatched")
	}

	// The malformed message is committed too so it cannot block the partition.
	assert.Eventually(t, func() bool { return reader.commits() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
