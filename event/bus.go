// Package event is a publish/subscribe registry. Sources register named
// subjects, subscribers attach callbacks to subjects, and firing a subject
// calls every callback, either immediately or through the subscriber's delivery
// queue.
//
// A subscriber with an enabled queue receives events synchronously only from
// the sources in its scope; everything else is queued and delivered when the
// subscriber calls ProcessQueue, in firing order. This lets a subscriber that
// lives on another goroutine decide where its callbacks run.
//
// Callbacks are always called without the bus lock held, so they may
// subscribe, unsubscribe or remove sources, including themselves.
package event

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type (
	// ID identifies sources and subscribers.
	ID = uuid.UUID

	// Subject names something that can be fired: a name owned by a source.
	Subject struct {
		Source ID
		Name   string
	}

	// Event is what a callback receives. Track and Beat are -1 when the event
	// is not about a track or a beat.
	Event struct {
		Subject
		Track int
		Beat  int
		Value float64
		Flag  bool
		Data  any
	}

	Callback func(e Event)

	// Subscription is returned by Subscribe and can be used to cancel just
	// that subscription.
	Subscription struct {
		Subject    Subject
		Subscriber ID
		id         uint64
	}

	Bus struct {
		mutex    sync.Mutex
		subjects map[Subject][]subscription
		queues   map[ID]*queue
		scopes   map[ID]map[ID]struct{}
		nextID   uint64
		logger   *slog.Logger
	}

	subscription struct {
		id         uint64
		subscriber ID
		callback   Callback
	}

	// payload tracks how many deliveries still reference data that has a
	// destructor.
	payload struct {
		data    any
		destroy func(any)
		refs    int
	}

	call struct {
		event    Event
		callback Callback
		payload  *payload
	}

	queue struct {
		calls []call
	}
)

var (
	ErrUnknownSubject   = errors.New("unknown subject")
	ErrSubjectExists    = errors.New("subject already registered")
	ErrUnknownSubscribe = errors.New("unknown subscription")
)

// NewID returns a fresh random ID for a source or subscriber.
func NewID() ID {
	return uuid.New()
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subjects: map[Subject][]subscription{},
		queues:   map[ID]*queue{},
		scopes:   map[ID]map[ID]struct{}{},
		logger:   logger,
	}
}

// Register makes a subject available for subscription.
func (b *Bus) Register(s Subject) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.subjects[s]; ok {
		return fmt.Errorf("cannot register %q: %w", s.Name, ErrSubjectExists)
	}
	b.subjects[s] = nil
	return nil
}

// Registered reports whether the subject exists.
func (b *Bus) Registered(s Subject) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	_, ok := b.subjects[s]
	return ok
}

// Subscribe attaches callback to the subject on behalf of subscriber. The
// same subscriber may subscribe to the same subject several times; every
// subscription is delivered.
func (b *Bus) Subscribe(s Subject, subscriber ID, callback Callback) (Subscription, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	subs, ok := b.subjects[s]
	if !ok {
		return Subscription{}, fmt.Errorf("cannot subscribe to %q: %w", s.Name, ErrUnknownSubject)
	}
	for _, sub := range subs {
		if sub.subscriber == subscriber {
			b.logger.Debug("event: subscriber subscribed more than once", "subject", s.Name, "subscriber", subscriber)
			break
		}
	}
	b.nextID++
	b.subjects[s] = append(subs, subscription{id: b.nextID, subscriber: subscriber, callback: callback})
	return Subscription{Subject: s, Subscriber: subscriber, id: b.nextID}, nil
}

// Unsubscribe cancels a single subscription. Calls already queued for it are
// still delivered.
func (b *Bus) Unsubscribe(sub Subscription) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	subs := b.subjects[sub.Subject]
	for i, s := range subs {
		if s.id == sub.id {
			b.subjects[sub.Subject] = append(subs[:i:i], subs[i+1:]...)
			return nil
		}
	}
	return ErrUnknownSubscribe
}

// UnsubscribeAll removes every subscription, queue and scope of subscriber.
// Pending queued calls are dropped.
func (b *Bus) UnsubscribeAll(subscriber ID) {
	b.mutex.Lock()
	var dropped []call
	for s, subs := range b.subjects {
		kept := subs[:0:0]
		for _, sub := range subs {
			if sub.subscriber != subscriber {
				kept = append(kept, sub)
			}
		}
		b.subjects[s] = kept
	}
	if q, ok := b.queues[subscriber]; ok {
		dropped = q.calls
		delete(b.queues, subscriber)
	}
	delete(b.scopes, subscriber)
	b.mutex.Unlock()
	b.release(dropped)
}

// RemoveSource removes every subject of source and every queued call fired
// by it.
func (b *Bus) RemoveSource(source ID) {
	b.mutex.Lock()
	for s := range b.subjects {
		if s.Source == source {
			delete(b.subjects, s)
		}
	}
	var dropped []call
	for _, q := range b.queues {
		kept := q.calls[:0]
		for _, c := range q.calls {
			if c.event.Source == source {
				dropped = append(dropped, c)
			} else {
				kept = append(kept, c)
			}
		}
		for i := len(kept); i < len(q.calls); i++ {
			q.calls[i] = call{}
		}
		q.calls = kept
	}
	for _, scope := range b.scopes {
		delete(scope, source)
	}
	b.mutex.Unlock()
	b.release(dropped)
}

// EnableQueue turns on deferred delivery for subscriber.
func (b *Bus) EnableQueue(subscriber ID) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.queues[subscriber]; !ok {
		b.queues[subscriber] = &queue{}
	}
}

// DisableQueue turns off deferred delivery. Calls still in the queue are
// dropped.
func (b *Bus) DisableQueue(subscriber ID) {
	b.mutex.Lock()
	q, ok := b.queues[subscriber]
	delete(b.queues, subscriber)
	b.mutex.Unlock()
	if ok {
		b.release(q.calls)
	}
}

// AddScope lets events fired by source reach subscriber synchronously even
// when its queue is enabled.
func (b *Bus) AddScope(subscriber, source ID) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	scope, ok := b.scopes[subscriber]
	if !ok {
		scope = map[ID]struct{}{}
		b.scopes[subscriber] = scope
	}
	scope[source] = struct{}{}
}

// QueueLen returns the number of calls waiting for subscriber.
func (b *Bus) QueueLen(subscriber ID) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if q, ok := b.queues[subscriber]; ok {
		return len(q.calls)
	}
	return 0
}

// Fire delivers e to every subscriber of its subject. If destroy is not nil,
// it is called with e.Data once no delivery references it anymore, which may
// be after Fire returns if some calls were queued.
func (b *Bus) Fire(e Event, destroy func(any)) error {
	b.mutex.Lock()
	subs, ok := b.subjects[e.Subject]
	if !ok {
		b.mutex.Unlock()
		if destroy != nil {
			destroy(e.Data)
		}
		return fmt.Errorf("cannot fire %q: %w", e.Name, ErrUnknownSubject)
	}
	var p *payload
	if destroy != nil {
		p = &payload{data: e.Data, destroy: destroy, refs: 1} // one ref held by Fire itself
	}
	now := make([]subscription, 0, len(subs))
	for _, sub := range subs {
		q, queued := b.queues[sub.subscriber]
		if queued && !b.inScope(sub.subscriber, e.Source) {
			if p != nil {
				p.refs++
			}
			q.calls = append(q.calls, call{event: e, callback: sub.callback, payload: p})
			continue
		}
		now = append(now, sub)
	}
	b.mutex.Unlock()
	for _, sub := range now {
		sub.callback(e)
	}
	b.release1(p)
	return nil
}

// ProcessQueue delivers the queued calls of subscriber in FIFO order. The
// queue is looked up again after every callback, since a callback may remove
// its own subscriber. Returns the number of calls delivered.
func (b *Bus) ProcessQueue(subscriber ID) int {
	n := 0
	for {
		b.mutex.Lock()
		q, ok := b.queues[subscriber]
		if !ok || len(q.calls) == 0 {
			b.mutex.Unlock()
			return n
		}
		c := q.calls[0]
		q.calls[0] = call{}
		q.calls = q.calls[1:]
		b.mutex.Unlock()
		c.callback(c.event)
		b.release1(c.payload)
		n++
	}
}

func (b *Bus) inScope(subscriber, source ID) bool {
	scope, ok := b.scopes[subscriber]
	if !ok {
		return false
	}
	_, ok = scope[source]
	return ok
}

func (b *Bus) release(calls []call) {
	for _, c := range calls {
		b.release1(c.payload)
	}
}

func (b *Bus) release1(p *payload) {
	if p == nil {
		return
	}
	b.mutex.Lock()
	p.refs--
	last := p.refs == 0
	b.mutex.Unlock()
	if last {
		p.destroy(p.data)
	}
}
