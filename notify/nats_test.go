package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNATS struct {
	subjects []string
	payloads [][]byte
	flushes  int
	err      error
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeNATS) FlushWithContext(context.Context) error {
	f.flushes++
	return nil
}

func TestNATSPublisher(t *testing.T) {
	t.Run("publishes on the status subject", func(t *testing.T) {
		// Arrange
		conn := &fakeNATS{}
		p := NewNATSPublisher(conn, "orders")
		event := testEvent()

		// Act
		err := p.Publish(context.Background(), event)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"orders.confirmed"}, conn.subjects)
		assert.Equal(t, 1, conn.flushes)

		var decoded Event
		require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
		assert.Equal(t, event.OrderID, decoded.OrderID)
		assert.Equal(t, event.OldStatus, decoded.OldStatus)
	})

	t.Run("connection error", func(t *testing.T) {
		conn := &fakeNATS{err: errors.New("nats: connection closed")}
		p := NewNATSPublisher(conn, "orders")

		err := p.Publish(context.Background(), testEvent())

		assert.ErrorContains(t, err, "orders.confirmed")
		assert.Zero(t, conn.flushes)
	})
}
