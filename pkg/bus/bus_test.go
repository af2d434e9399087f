package bus

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	received := make(chan *Message, 1)

	sub, err := bus.Subscribe(ctx, "test.subject", func(msg *Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	if err := bus.Publish(ctx, "test.subject", []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Data) != "hello" {
			t.Errorf("Expected 'hello', got %q", string(msg.Data))
		}
		if msg.Subject != "test.subject" {
			t.Errorf("Expected subject 'test.subject', got %q", msg.Subject)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

func TestMemoryBus_Wildcard(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	var received atomic.Int32
	done := make(chan struct{}, 4)

	sub, err := bus.Subscribe(ctx, "livewidgets.intents.*", func(msg *Message) {
		received.Add(1)
		done <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	bus.Publish(ctx, "livewidgets.intents.drill_down", []byte("1"))
	bus.Publish(ctx, "livewidgets.intents.update_status", []byte("2"))
	bus.Publish(ctx, "livewidgets.events.page", []byte("3"))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for wildcard delivery")
		}
	}
	time.Sleep(20 * time.Millisecond)
	if received.Load() != 2 {
		t.Errorf("Expected 2 messages, got %d", received.Load())
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	var received atomic.Int32
	sub, err := bus.Subscribe(ctx, "a.b", func(*Message) { received.Add(1) })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second Unsubscribe failed: %v", err)
	}
	bus.Publish(ctx, "a.b", []byte("x"))
	time.Sleep(20 * time.Millisecond)
	if received.Load() != 0 {
		t.Errorf("Expected no delivery after unsubscribe, got %d", received.Load())
	}
}

func TestMemoryBus_ClosedOperations(t *testing.T) {
	bus := NewMemoryBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bus.Close(); err != ErrClosed {
		t.Errorf("Expected ErrClosed on second close, got %v", err)
	}
	if err := bus.Publish(context.Background(), "x", nil); err != ErrClosed {
		t.Errorf("Expected ErrClosed from Publish, got %v", err)
	}
	if _, err := bus.Subscribe(context.Background(), "x", func(*Message) {}); err != ErrClosed {
		t.Errorf("Expected ErrClosed from Subscribe, got %v", err)
	}
}

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"a.b.c", "a.b.c", true},
		{"a.*.c", "a.b.c", true},
		{"a.*", "a.b.c", false},
		{"a.>", "a.b.c", true},
		{"a.>", "a", false},
		{"a.>.c", "a.b.c", false},
		{"livewidgets.events.>", "livewidgets.events.home", true},
		{"a.b", "a.c", false},
	}
	for _, tt := range tests {
		if got := matchSubject(tt.pattern, tt.subject); got != tt.want {
			t.Errorf("matchSubject(%q, %q) = %v, want %v", tt.pattern, tt.subject, got, tt.want)
		}
	}
}

func TestSubscribeEvents(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	type got struct {
		page string
		ev   Event
	}
	events := make(chan got, 2)
	errs := make(chan string, 2)
	_, err := SubscribeEvents(ctx, bus, func(page string, ev Event) {
		events <- got{page, ev}
	}, func(subject string, err error) {
		errs <- subject
	})
	if err != nil {
		t.Fatalf("SubscribeEvents failed: %v", err)
	}

	if err := PublishEvent(ctx, bus, "ops", Event{Channel: "widget_update:cpu", Payload: json.RawMessage(`{"value":1}`)}); err != nil {
		t.Fatalf("PublishEvent failed: %v", err)
	}
	bus.Publish(ctx, EventsSubject("ops"), []byte(`{"payload":{}}`))

	select {
	case g := <-events:
		if g.page != "ops" || g.ev.Channel != "widget_update:cpu" || string(g.ev.Payload) != `{"value":1}` {
			t.Errorf("unexpected event %+v", g)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
	select {
	case subject := <-errs:
		if subject != "livewidgets.events.ops" {
			t.Errorf("unexpected error subject %q", subject)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for decode error")
	}
}

func TestIntentPublisher(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	received := make(chan *Message, 1)
	if _, err := bus.Subscribe(ctx, IntentSubject("update_status"), func(msg *Message) { received <- msg }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	pub := NewIntentPublisher(bus)
	in, err := pub.PublishIntent(ctx, "board", "update_status", map[string]string{"id": "7", "new_status": "done"})
	if err != nil {
		t.Fatalf("PublishIntent failed: %v", err)
	}
	if in.ID == "" || in.Page != "board" {
		t.Errorf("unexpected envelope %+v", in)
	}

	select {
	case msg := <-received:
		var decoded Intent
		if err := json.Unmarshal(msg.Data, &decoded); err != nil {
			t.Fatalf("decode intent: %v", err)
		}
		if decoded.ID != in.ID || string(decoded.Payload) != `{"id":"7","new_status":"done"}` {
			t.Errorf("unexpected intent %+v", decoded)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for intent")
	}
}

func TestMemoryBus_ContextEndsSubscription(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var received atomic.Int32
	if _, err := bus.Subscribe(ctx, "a.b", func(*Message) { received.Add(1) }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		bus.mu.RLock()
		n := len(bus.subs)
		bus.mu.RUnlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription outlived its context")
		}
		time.Sleep(5 * time.Millisecond)
	}
	bus.Publish(context.Background(), "a.b", []byte("x"))
	time.Sleep(20 * time.Millisecond)
	if received.Load() != 0 {
		t.Errorf("Expected no delivery after cancel, got %d", received.Load())
	}
}

func TestMemoryBus_SlowSubscriberDrops(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	release := make(chan struct{})
	sub, err := bus.Subscribe(ctx, "slow", func(*Message) { <-release })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()
	defer close(release)

	for i := 0; i < memoryQueueDepth+10; i++ {
		if err := bus.Publish(ctx, "slow", []byte("x")); err != nil {
			t.Fatalf("Publish blocked or failed: %v", err)
		}
	}
	if bus.Dropped() < 9 {
		t.Errorf("Expected overflow to be dropped, dropped=%d", bus.Dropped())
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Name: "custom"}.withDefaults()
	if cfg.URL != DefaultConfig().URL || cfg.Timeout != 10*time.Second || cfg.Name != "custom" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
