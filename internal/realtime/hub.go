package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"studiodesk/internal/logging"
)

const subscriptionBuffer = 64

var ErrInvalidQuery = errors.New("invalid subscription query")

type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventChange   EventType = "change"
)

// Event is what a subscriber reads off its channel.
type Event struct {
	Type   EventType `json:"type"`
	Query  Query     `json:"query"`
	Docs   any       `json:"docs,omitempty"`
	Change *Change   `json:"change,omitempty"`
}

// Relay carries changes between API instances. The relay delivers every
// message, including our own, back through Hub.Deliver.
type Relay interface {
	Send(ctx context.Context, ch Change) error
}

// Snapshotter loads the current documents matching a query.
type Snapshotter func(ctx context.Context, q Query) (any, error)

type Subscription struct {
	id     uint64
	query  Query
	events chan Event
	hub    *Hub
	once   sync.Once
}

func (s *Subscription) Query() Query { return s.query }

func (s *Subscription) Events() <-chan Event { return s.events }

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.hub.remove(s) })
}

type Hub struct {
	mu        sync.RWMutex
	next      uint64
	subs      map[uint64]*Subscription
	snapshots map[string]Snapshotter
	relay     Relay
}

func NewHub() *Hub {
	return &Hub{
		subs:      make(map[uint64]*Subscription),
		snapshots: make(map[string]Snapshotter),
	}
}

func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

func (h *Hub) RegisterSnapshotter(collection string, fn Snapshotter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots[collection] = fn
}

func (h *Hub) Subscribe(q Query) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	s := &Subscription{
		id:     h.next,
		query:  q,
		events: make(chan Event, subscriptionBuffer),
		hub:    h,
	}
	h.subs[s.id] = s
	return s, nil
}

// Snapshot runs the registered snapshotter for the query's collection.
func (h *Hub) Snapshot(ctx context.Context, q Query) (any, error) {
	h.mu.RLock()
	fn, ok := h.snapshots[q.Collection]
	h.mu.RUnlock()
	if !ok {
		return []any{}, nil
	}
	return fn(ctx, q)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
		close(s.events)
	}
}

// Publish fans the change out. With a relay configured the change goes out
// through it and comes back via Deliver on every instance. If the relay fails
// local subscribers still get it.
func (h *Hub) Publish(ctx context.Context, ch Change) {
	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()

	if relay != nil {
		err := relay.Send(ctx, ch)
		if err == nil {
			return
		}
		logging.LogError(logging.GetLogger(), "realtime", "Publish", "relay send failed, delivering locally", ch.Collection, err)
	}
	h.Deliver(ch)
}

// Deliver hands the change to every matching local subscriber. A subscriber
// whose buffer is full misses the change rather than blocking the writer.
func (h *Hub) Deliver(ch Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		if !s.query.Matches(ch) {
			continue
		}
		c := ch
		select {
		case s.events <- Event{Type: EventChange, Query: s.query, Change: &c}:
		default:
			logging.GetLogger().WithFields(logrus.Fields{
				"collection": ch.Collection,
				"tenant_id":  ch.TenantID,
			}).Warn("realtime subscriber too slow, change dropped")
		}
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
