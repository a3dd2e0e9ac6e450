package queue

import (
	"sync"
	"time"
)

// Entry is a document waiting for, or undergoing, conversion.
type Entry struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Snapshot is a point-in-time copy of the queue.
type Snapshot struct {
	Pending   []Entry
	InFlight  *Entry
	StartedAt time.Time
}

// Queue is a FIFO of documents with a single in-flight slot.
type Queue struct {
	mu        sync.Mutex
	pending   []Entry
	ids       map[int64]struct{}
	inFlight  *Entry
	startedAt time.Time
	// finished remembers successful completions so a listing taken while the
	// document was still tagged does not enqueue it again.
	finished  map[int64]time.Time
	watermark time.Time
	now       func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the time source for enqueue, start and completion stamps.
// It must be the same clock that produces the discoveredAt values passed to
// Enqueue.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New returns an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		ids:      make(map[int64]struct{}),
		finished: make(map[int64]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends every entry whose ID is neither pending nor in flight, in
// order. discoveredAt is when the listing that produced the entries was
// requested; an entry that finished successfully after that instant is
// skipped. It returns the entries actually added.
func (q *Queue) Enqueue(discoveredAt time.Time, entries ...Entry) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if discoveredAt.After(q.watermark) {
		q.watermark = discoveredAt
		for id, at := range q.finished {
			if at.Before(q.watermark) {
				delete(q.finished, id)
			}
		}
	}

	var added []Entry
	for _, entry := range entries {
		if entry.ID <= 0 {
			continue
		}
		if _, ok := q.ids[entry.ID]; ok {
			continue
		}
		if q.inFlight != nil && q.inFlight.ID == entry.ID {
			continue
		}
		if at, ok := q.finished[entry.ID]; ok && !at.Before(discoveredAt) {
			continue
		}
		if entry.EnqueuedAt.IsZero() {
			entry.EnqueuedAt = q.now()
		}
		q.pending = append(q.pending, entry)
		q.ids[entry.ID] = struct{}{}
		added = append(added, entry)
	}
	return added
}

// Begin moves the head of the queue into the in-flight slot. It returns false
// when something is already in flight or nothing is pending.
func (q *Queue) Begin() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight != nil || len(q.pending) == 0 {
		return Entry{}, false
	}
	head := q.pending[0]
	q.pending[0] = Entry{}
	q.pending = q.pending[1:]
	delete(q.ids, head.ID)

	q.inFlight = &head
	q.startedAt = q.now()
	return head, true
}

// Finish clears the in-flight slot for id. Successful completions are
// remembered until a newer discovery makes them irrelevant; failures are
// forgotten so the next poll can enqueue the document again. It returns false
// when id is not in flight.
func (q *Queue) Finish(id int64, succeeded bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == nil || q.inFlight.ID != id {
		return false
	}
	q.inFlight = nil
	q.startedAt = time.Time{}
	if succeeded {
		q.finished[id] = q.now()
	}
	return true
}

// Len returns the number of pending entries, excluding the in-flight one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns a copy of the in-flight entry, or nil.
func (q *Queue) InFlight() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		return nil
	}
	entry := *q.inFlight
	return &entry
}

// Contains reports whether id is pending or in flight.
func (q *Queue) Contains(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.ids[id]; ok {
		return true
	}
	return q.inFlight != nil && q.inFlight.ID == id
}

// Pending returns a copy of the pending entries in FIFO order.
func (q *Queue) Pending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.pending...)
}

// Snapshot returns a consistent copy of the pending list and in-flight slot.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap := Snapshot{
		Pending:   append([]Entry(nil), q.pending...),
		StartedAt: q.startedAt,
	}
	if q.inFlight != nil {
		entry := *q.inFlight
		snap.InFlight = &entry
	}
	return snap
}
