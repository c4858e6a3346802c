package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/brooks/internal/core/domain"
)

// Subscriber reads session events back from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS for consuming session events.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url,
		nats.Name("brooks-events"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeSessionEvents delivers events of type t (all types when empty),
// starting with those stored since the given time. Messages the handler
// rejects are redelivered up to three times.
func (s *Subscriber) SubscribeSessionEvents(ctx context.Context, t domain.SessionEventType, since time.Time, handler func(ctx context.Context, event *domain.SessionEvent) error) error {
	subject := SubjectPrefix + ">"
	if t != "" {
		subject = Subject(t)
	}

	opts := []nats.SubOpt{nats.ManualAck(), nats.MaxDeliver(3)}
	if since.IsZero() {
		opts = append(opts, nats.DeliverNew())
	} else {
		opts = append(opts, nats.StartTime(since))
	}

	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var event domain.SessionEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, opts...)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
