package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
)

// NATSNotifier publishes sync signals to "<prefix>.<seller id>".
// Subscribers listen on "<prefix>.*" or a single seller's subject.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// syncMessage is the wire payload of a sync signal.
type syncMessage struct {
	SellerID string    `json:"seller_id"`
	Topic    string    `json:"topic"`
	At       time.Time `json:"at"`
}

// NewNATSNotifier panics if conn is nil.
func NewNATSNotifier(conn *nats.Conn, subjectPrefix string) *NATSNotifier {
	if conn == nil {
		panic("subscription: nats connection is required")
	}
	if subjectPrefix == "" {
		subjectPrefix = "retailplan.sync"
	}
	return &NATSNotifier{conn: conn, prefix: subjectPrefix}
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, errors.Join(ErrNotifierUnavailable, err)
	}
	return conn, nil
}

// Notify publishes ev and waits for the server to acknowledge the flush,
// bounded by ctx.
func (n *NATSNotifier) Notify(ctx context.Context, ev engine.SyncEvent) error {
	subject, payload, err := encodeSyncEvent(n.prefix, ev)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

func encodeSyncEvent(prefix string, ev engine.SyncEvent) (string, []byte, error) {
	payload, err := json.Marshal(syncMessage{
		SellerID: ev.SellerID.String(),
		Topic:    ev.Topic,
		At:       ev.At.UTC(),
	})
	if err != nil {
		return "", nil, fmt.Errorf("encode sync event: %w", err)
	}
	return prefix + "." + ev.SellerID.String(), payload, nil
}

var _ engine.Notifier = (*NATSNotifier)(nil)
