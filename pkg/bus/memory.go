package bus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// memoryQueueDepth bounds each subscriber's backlog. Publishers never
// block; a full backlog drops the message and counts it.
const memoryQueueDepth = 256

// MemoryBus is a process-local MessageBus for single-process deployments
// and tests. Each subscriber receives its messages in publish order on a
// goroutine of its own.
type MemoryBus struct {
	mu      sync.RWMutex
	subs    []*memorySubscription
	closed  bool
	dropped atomic.Int64
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish hands data to every subscriber whose pattern matches subject.
func (b *MemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tokens := strings.Split(subject, ".")
	msg := &Message{Subject: subject, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, sub := range b.subs {
		if !matchTokens(sub.pattern, tokens) {
			continue
		}
		select {
		case sub.queue <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe starts delivering matching messages to handler until the
// subscription is cancelled, ctx is done or the bus closes.
func (b *MemoryBus) Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error) {
	sub := &memorySubscription{
		bus:     b,
		subject: subject,
		pattern: strings.Split(subject, "."),
		queue:   make(chan *Message, memoryQueueDepth),
		stop:    make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go sub.deliver(ctx, handler)
	return sub, nil
}

// Dropped counts messages discarded because a subscriber fell behind.
func (b *MemoryBus) Dropped() int64 { return b.dropped.Load() }

// Close stops every subscription. Closing twice returns ErrClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.halt()
	}
	return nil
}

func (b *MemoryBus) remove(target *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

type memorySubscription struct {
	bus     *MemoryBus
	subject string
	pattern []string
	queue   chan *Message
	stop    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) Subject() string { return s.subject }

// Unsubscribe is idempotent.
func (s *memorySubscription) Unsubscribe() error {
	s.bus.remove(s)
	s.halt()
	return nil
}

func (s *memorySubscription) halt() {
	s.once.Do(func() { close(s.stop) })
}

func (s *memorySubscription) deliver(ctx context.Context, handler MessageHandler) {
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			s.bus.remove(s)
			s.halt()
			return
		case msg := <-s.queue:
			select {
			case <-s.stop:
				return
			default:
			}
			handler(msg)
		}
	}
}

// matchSubject reports whether subject matches a NATS-style pattern: "*"
// matches exactly one token and a trailing ">" matches one or more.
func matchSubject(pattern, subject string) bool {
	return matchTokens(strings.Split(pattern, "."), strings.Split(subject, "."))
}

func matchTokens(pattern, subject []string) bool {
	for i, tok := range pattern {
		if tok == ">" {
			return i == len(pattern)-1 && len(subject) > i
		}
		if i >= len(subject) {
			return false
		}
		if tok != "*" && tok != subject[i] {
			return false
		}
	}
	return len(pattern) == len(subject)
}
