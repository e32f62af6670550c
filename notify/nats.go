package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// NATSConn is the part of *nats.Conn the publisher needs.
type NATSConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSPublisher publishes each event on "<prefix>.<new status>" so subscribers can pick
// the transitions they care about with a subject wildcard.
type NATSPublisher struct {
	conn   NATSConn
	prefix string
}

func NewNATSPublisher(conn NATSConn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func (p *NATSPublisher) Subject(event Event) string {
	return p.prefix + "." + string(event.NewStatus)
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	subject := p.Subject(event)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	// Publish only buffers; the flush bounds delivery to the dispatcher's timeout.
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush %s: %w", subject, err)
	}
	return nil
}
