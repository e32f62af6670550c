package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mytheresa/storefront-engine/models"
)

const testRedisAddr = "localhost:6379"

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func testEvent() Event {
	order := &models.Order{
		ID:     uuid.New(),
		Number: "ABCD2345",
		Status: models.OrderStatusConfirmed,
		Items:  []models.OrderItem{{ProductID: uuid.New(), Name: "Runner", Quantity: 2}},
	}
	return EventFor(order, models.OrderStatusPending, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestDispatcher(t *testing.T) {
	testCases := []struct {
		name         string
		failing      Publisher
		expectedLogs string
	}{
		{
			name: "failing publisher is logged",
			failing: PublisherFunc(func(context.Context, Event) error {
				return errors.New("broker down")
			}),
			expectedLogs: "failed to publish order event",
		},
		{
			name: "panicking publisher is recovered",
			failing: PublisherFunc(func(context.Context, Event) error {
				panic("boom")
			}),
			expectedLogs: "publisher panicked",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			core, logs := observer.New(zapcore.DebugLevel)
			rec := &recorder{}
			d := NewDispatcher(zap.New(core), time.Second, tc.failing, rec)
			ctx, cancel := context.WithCancel(context.Background())

			// Act
			d.Dispatch(ctx, testEvent())
			cancel()
			d.Wait()

			// Assert
			require.Len(t, rec.received(), 1)
			assert.Equal(t, models.OrderStatusPending, rec.received()[0].OldStatus)
			assert.Equal(t, 1, logs.FilterMessage(tc.expectedLogs).Len())
		})
	}
}

func TestDispatcherBoundsSlowPublishers(t *testing.T) {
	slow := PublisherFunc(func(ctx context.Context, _ Event) error {
		<-ctx.Done()
		return ctx.Err()
	})
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDispatcher(zap.New(core), 10*time.Millisecond, slow)

	d.Dispatch(context.Background(), testEvent())
	require.NoError(t, d.Close(context.Background()))

	entries := logs.FilterMessage("failed to publish order event").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "deadline exceeded")
}

func TestDispatcherCloseGivesUp(t *testing.T) {
	release := make(chan struct{})
	blocked := PublisherFunc(func(context.Context, Event) error {
		<-release
		return nil
	})
	d := NewDispatcher(nil, time.Minute, blocked)
	d.Dispatch(context.Background(), testEvent())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	d.Wait()
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), testEvent()))

	entries := logs.FilterMessage("order status changed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ABCD2345", fields["order_number"])
	assert.Equal(t, "confirmed", fields["new_status"])
}

func TestRedisPublisher(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	channel := "orders-test-" + uuid.NewString()
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	event := testEvent()
	require.NoError(t, NewRedisPublisher(client, channel).Publish(ctx, event))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, event.OrderID, got.OrderID)
	assert.Equal(t, event.NewStatus, got.NewStatus)
	assert.Len(t, got.Items, 1)
}
