package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Subject prefixes used by livewidgets.
const (
	EventsPrefix  = "livewidgets.events."
	IntentsPrefix = "livewidgets.intents."
)

// EventsSubject is where update events for one page are published.
func EventsSubject(pageID string) string { return EventsPrefix + pageID }

// IntentSubject is where intents of one name are published.
func IntentSubject(name string) string { return IntentsPrefix + name }

// Event is an inbound update addressed to a channel of one page.
type Event struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Intent is an outbound user intent.
type Intent struct {
	ID        string          `json:"id"`
	Page      string          `json:"page"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// PublishEvent sends ev to a page.
func PublishEvent(ctx context.Context, b MessageBus, pageID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.Publish(ctx, EventsSubject(pageID), data)
}

// SubscribeEvents delivers events for every page to fn. Messages that do
// not decode are reported through onError and skipped.
func SubscribeEvents(ctx context.Context, b MessageBus, fn func(pageID string, ev Event), onError func(subject string, err error)) (Subscription, error) {
	return b.Subscribe(ctx, EventsPrefix+">", func(msg *Message) {
		pageID := strings.TrimPrefix(msg.Subject, EventsPrefix)
		var ev Event
		err := json.Unmarshal(msg.Data, &ev)
		if err == nil && strings.TrimSpace(ev.Channel) == "" {
			err = fmt.Errorf("event without channel")
		}
		if err != nil {
			if onError != nil {
				onError(msg.Subject, err)
			}
			return
		}
		fn(pageID, ev)
	})
}

// IntentPublisher publishes intents on their subjects.
type IntentPublisher struct {
	bus MessageBus
	now func() time.Time
}

// NewIntentPublisher wraps b.
func NewIntentPublisher(b MessageBus) *IntentPublisher {
	return &IntentPublisher{bus: b, now: time.Now}
}

// PublishIntent encodes payload and publishes it on the intent's subject.
// It returns the published envelope.
func (p *IntentPublisher) PublishIntent(ctx context.Context, pageID, name string, payload any) (Intent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Intent{}, fmt.Errorf("encode intent payload: %w", err)
	}
	in := Intent{
		ID:        ulid.Make().String(),
		Page:      pageID,
		Name:      name,
		Payload:   raw,
		Timestamp: p.now().UTC(),
	}
	data, err := json.Marshal(in)
	if err != nil {
		return Intent{}, fmt.Errorf("encode intent: %w", err)
	}
	if err := p.bus.Publish(ctx, IntentSubject(name), data); err != nil {
		return Intent{}, err
	}
	return in, nil
}
