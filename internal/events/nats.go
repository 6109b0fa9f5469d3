package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes order events to NATS subjects. Event type
// "order.created" maps to subject "orders.created", and so on.
type NATSPublisher struct {
	conn *nats.Conn
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to the given NATS URL with reconnect enabled.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("njord-orders"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish marshals the event as JSON and publishes it. NATS publishes are
// fire-and-forget; the context is only checked for early cancellation.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(subjectFor(event.Type), payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Close drains the connection, flushing pending publishes.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

func subjectFor(eventType string) string {
	suffix := strings.TrimPrefix(eventType, "order.")
	return "orders." + suffix
}
