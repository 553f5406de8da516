// internal/notify/queue.go
package notify

import (
	"sync"
	"time"
)

// Token identifies an outstanding asynchronous request. The zero Token marks
// a plain broadcast notification with no awaiting caller.
type Token uint64

// Delivery pairs an event with the request token it resolves, if any.
type Delivery struct {
	Token Token
	Event Event
}

type queued struct {
	due time.Time
	d   Delivery
}

// Queue is the notification sink the protocol core emits into and the
// embedding application drains. It supports immediate events, events held
// back by a short delay, replace-existing collapsing, and exactly-once
// resolution of reserved request tokens.
type Queue struct {
	mu       sync.Mutex
	now      func() time.Time
	next     Token
	reserved map[Token]bool
	pending  []queued
}

// NewQueue initializes an empty Queue. Delayed events come due on the given
// clock, so a caller driving its timeouts on an injected now function passes
// the same one here. A nil now means wall-clock time.
func NewQueue(now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{now: now, reserved: make(map[Token]bool)}
}

// Reserve allocates a token for an asynchronous request. The caller matches
// it against a later Delivery.
func (q *Queue) Reserve() Token {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.reserved[q.next] = true
	return q.next
}

// Cancel abandons a reserved token and discards any pending delivery for it.
func (q *Queue) Cancel(t Token) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.reserved, t)
	kept := q.pending[:0]
	for _, p := range q.pending {
		if p.d.Token != t {
			kept = append(kept, p)
		}
	}
	q.pending = kept
}

// Complete resolves a reserved token with its terminal event. A token can be
// completed at most once; completions for unknown tokens are dropped.
func (q *Queue) Complete(t Token, ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.reserved[t] {
		return
	}
	delete(q.reserved, t)
	q.pending = append(q.pending, queued{d: Delivery{Token: t, Event: ev}})
}

// Post enqueues an event for immediate delivery.
func (q *Queue) Post(ev Event) {
	q.PostDelayed(ev, 0, false)
}

// PostDelayed enqueues an event that becomes deliverable after delay. With
// replace set, a still-pending event of the same kind (and no token) is
// removed first, so rapid repeats collapse to the latest one.
func (q *Queue) PostDelayed(ev Event, delay time.Duration, replace bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if replace {
		kept := q.pending[:0]
		for _, p := range q.pending {
			if p.d.Token == 0 && p.d.Event.Kind() == ev.Kind() {
				continue
			}
			kept = append(kept, p)
		}
		q.pending = kept
	}
	var due time.Time
	if delay > 0 {
		due = q.now().Add(delay)
	}
	q.pending = append(q.pending, queued{due: due, d: Delivery{Event: ev}})
}

// Drain removes and returns every delivery due at now, in enqueue order.
func (q *Queue) Drain(now time.Time) []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Delivery
	kept := q.pending[:0]
	for _, p := range q.pending {
		if p.due.IsZero() || !p.due.After(now) {
			out = append(out, p.d)
		} else {
			kept = append(kept, p)
		}
	}
	q.pending = kept
	return out
}

// Len reports how many deliveries are pending, due or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
