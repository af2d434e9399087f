package bus

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

// NATSBus is a MessageBus over core NATS subjects. Delivery is at most
// once; update events are idempotent re-renders so nothing is persisted.
type NATSBus struct {
	conn   *nats.Conn
	closed atomic.Bool
}

// NewNATSBus dials the server in cfg and keeps reconnecting for the life
// of the bus.
func NewNATSBus(cfg Config) (*NATSBus, error) {
	cfg = cfg.withDefaults()
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTransport, "connecting to nats").WithContext("url", cfg.URL)
	}
	return &NATSBus{conn: conn}, nil
}

func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "publishing").WithContext("subject", subject)
	}
	// with a deadline, wait until the server has the message
	if deadline, ok := ctx.Deadline(); ok {
		if err := b.conn.FlushTimeout(time.Until(deadline)); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeTransport, "flushing").WithContext("subject", subject)
		}
	}
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	ns, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{Subject: msg.Subject, Data: msg.Data})
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTransport, "subscribing").WithContext("subject", subject)
	}
	sub := &natsSubscription{sub: ns, stop: make(chan struct{})}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Unsubscribe()
			case <-sub.stop:
			}
		}()
	}
	return sub, nil
}

// Close drains in-flight messages and closes the connection.
func (b *NATSBus) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

type natsSubscription struct {
	sub  *nats.Subscription
	stop chan struct{}
	done atomic.Bool
}

func (s *natsSubscription) Unsubscribe() error {
	if s.done.Swap(true) {
		return nil
	}
	close(s.stop)
	if err := s.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
		return err
	}
	return nil
}

func (s *natsSubscription) Subject() string { return s.sub.Subject }
