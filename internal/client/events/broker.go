// Package events fans push events out to interested subscribers.
package events

import (
	"cmp"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/models"
)

// Handler receives one event. Handlers run on the publisher's goroutine and
// should return quickly.
type Handler func(models.Envelope)

// Broker dispatches envelopes by event type.
type Broker struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
}

// Subscription is returned by Subscribe. Call Unsubscribe to stop delivery.
type Subscription struct {
	id     uint64
	types  map[models.EventType]struct{} // nil means every type
	fn     Handler
	broker *Broker
	once   sync.Once
}

func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{logger: logger, subs: make(map[uint64]*Subscription)}
}

// Subscribe registers fn for the given types. With no types it receives
// every event.
func (b *Broker) Subscribe(fn Handler, types ...models.EventType) *Subscription {
	sub := &Subscription{fn: fn, broker: b}
	if len(types) > 0 {
		sub.types = make(map[models.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// SubscribeAll is Subscribe with no type filter.
func (b *Broker) SubscribeAll(fn Handler) *Subscription {
	return b.Subscribe(fn)
}

// Unsubscribe is idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
	})
}

func (s *Subscription) wants(t models.EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Publish delivers env to every matching subscriber in subscription order
// and returns how many received it.
func (b *Broker) Publish(env models.Envelope) int {
	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(env.Type) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	slices.SortFunc(matched, func(x, y *Subscription) int { return cmp.Compare(x.id, y.id) })
	for _, s := range matched {
		b.deliver(s, env)
	}
	b.logger.Debug("event published", zap.String("type", string(env.Type)), zap.Int("subscribers", len(matched)))
	return len(matched)
}

func (b *Broker) deliver(s *Subscription, env models.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", zap.String("type", string(env.Type)), zap.Any("panic", r))
		}
	}()
	s.fn(env)
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
