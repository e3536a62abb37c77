package api

import (
	"encoding/json"
	"sync"
)

// Event is a server-pushed message for SSE and WebSocket subscribers.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventBroker fans events out to subscribers of a tenant.
type EventBroker interface {
	Subscribe(tenant string) chan Event
	Unsubscribe(tenant string, ch chan Event)
	Publish(tenant string, evt Event)
	Close() error
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // tenant -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(tenant string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[tenant] == nil {
		b.subs[tenant] = map[chan Event]struct{}{}
	}
	b.subs[tenant][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(tenant string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[tenant]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, tenant)
	}
	close(ch)
}

// Publish never blocks; slow subscribers drop events.
func (b *Broker) Publish(tenant string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[tenant] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) Close() error { return nil }

func newEvent(typ string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Data: raw}, nil
}
