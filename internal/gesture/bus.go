package gesture

import (
	"sync"
	"time"
)

// Event is published when a detector recognizes a gesture.
type Event struct {
	Gesture  string    `json:"gesture"`
	Detector string    `json:"detector"`
	Class    int       `json:"class"`
	Score    float32   `json:"score"`
	Repeat   bool      `json:"repeat"`
	At       time.Time `json:"at"`
}

// Handler receives published events.
type Handler func(Event)

// Bus delivers events to subscribers synchronously, in subscription order.
type Bus struct {
	mu   sync.Mutex
	subs []*Subscription
}

// Subscription is a registered handler. Cancel removes it.
type Subscription struct {
	bus     *Bus
	handler Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for every later Publish.
func (b *Bus) Subscribe(h Handler) *Subscription {
	s := &Subscription{bus: b, handler: h}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	return s
}

// Cancel unregisters the handler. It is safe to call more than once.
func (s *Subscription) Cancel() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish calls every handler registered at the time of the call.
// Handlers may subscribe or cancel while being called.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.handler(e)
	}
}
