// Package bus moves page update events into livewidgets and user intents
// out of it. Subjects follow NATS conventions; NATSBus talks to a NATS
// server and MemoryBus keeps everything inside one process.
package bus

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a bus that has been closed.
var ErrClosed = errors.New("bus closed")

// MessageBus publishes raw payloads on subjects and fans them out to
// subscribers. Implementations are safe for concurrent use.
type MessageBus interface {
	// Publish is fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error
	// Subscribe accepts "*" and ">" wildcards. The subscription ends when
	// it is cancelled, ctx is done or the bus closes.
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error)
	Close() error
}

// MessageHandler receives one message.
type MessageHandler func(msg *Message)

// Message is a delivered payload and the concrete subject it arrived on.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription is a live subscription.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// Config describes a NATS connection.
type Config struct {
	URL     string
	Name    string
	Timeout time.Duration
}

// DefaultConfig matches a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:     "nats://127.0.0.1:4222",
		Name:    "livewidgets",
		Timeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
