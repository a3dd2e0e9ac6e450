package queue_test

import (
	"sync"
	"testing"
	"time"

	"paperling/internal/queue"
)

func entries(ids ...int64) []queue.Entry {
	out := make([]queue.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, queue.Entry{ID: id, Title: "doc"})
	}
	return out
}

func pendingIDs(q *queue.Queue) []int64 {
	var ids []int64
	for _, entry := range q.Pending() {
		ids = append(ids, entry.ID)
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEnqueueIsIdempotent(t *testing.T) {
	q := queue.New()
	now := time.Now()

	if added := q.Enqueue(now, entries(1, 2)...); len(added) != 2 {
		t.Fatalf("expected two entries added, got %d", len(added))
	}
	if added := q.Enqueue(now, entries(2, 1, 3)...); len(added) != 1 || added[0].ID != 3 {
		t.Fatalf("expected only document 3 added, got %+v", added)
	}
	if got := pendingIDs(q); !equalIDs(got, []int64{1, 2, 3}) {
		t.Fatalf("unexpected pending order %v", got)
	}
}

func TestEnqueueSkipsDuplicatesWithinOneCall(t *testing.T) {
	q := queue.New()
	q.Enqueue(time.Now(), entries(4, 4, 0, 5)...)
	if got := pendingIDs(q); !equalIDs(got, []int64{4, 5}) {
		t.Fatalf("unexpected pending %v", got)
	}
}

func TestEnqueueSkipsInFlight(t *testing.T) {
	q := queue.New()
	now := time.Now()
	q.Enqueue(now, entries(1)...)
	if _, ok := q.Begin(); !ok {
		t.Fatal("expected Begin to start document 1")
	}
	if added := q.Enqueue(now, entries(1)...); len(added) != 0 {
		t.Fatalf("in-flight document must not be enqueued again, got %+v", added)
	}
	if q.Len() != 0 || !q.Contains(1) {
		t.Fatalf("expected only the in-flight entry, len=%d", q.Len())
	}
}

func TestBeginIsFIFOAndSingleFlight(t *testing.T) {
	q := queue.New()
	q.Enqueue(time.Now(), entries(10, 20)...)

	first, ok := q.Begin()
	if !ok || first.ID != 10 {
		t.Fatalf("expected document 10 first, got %+v ok=%v", first, ok)
	}
	if _, ok := q.Begin(); ok {
		t.Fatal("Begin must refuse while a document is in flight")
	}
	if q.Len()+1 != 2 {
		t.Fatalf("len + in flight should equal outstanding documents, len=%d", q.Len())
	}
	if inFlight := q.InFlight(); inFlight == nil || inFlight.ID != 10 {
		t.Fatalf("unexpected in-flight entry %+v", inFlight)
	}

	if !q.Finish(10, true) {
		t.Fatal("Finish should accept the in-flight id")
	}
	second, ok := q.Begin()
	if !ok || second.ID != 20 {
		t.Fatalf("expected document 20 next, got %+v ok=%v", second, ok)
	}
	if q.Finish(10, true) {
		t.Fatal("Finish must ignore ids that are not in flight")
	}
}

func TestBeginOnEmptyQueue(t *testing.T) {
	q := queue.New()
	if _, ok := q.Begin(); ok {
		t.Fatal("expected Begin to report nothing pending")
	}
	if q.InFlight() != nil {
		t.Fatal("expected nothing in flight")
	}
}

func TestFinishedDocumentSkippedByStaleListing(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	q := queue.New(queue.WithClock(func() time.Time { return clock }))

	q.Enqueue(clock, entries(7)...)
	q.Begin()

	staleListing := clock.Add(time.Second)
	clock = clock.Add(2 * time.Second)
	q.Finish(7, true)

	if added := q.Enqueue(staleListing, entries(7)...); len(added) != 0 {
		t.Fatalf("listing taken before completion must not re-enqueue, got %+v", added)
	}

	freshListing := clock.Add(time.Second)
	if added := q.Enqueue(freshListing, entries(7)...); len(added) != 1 {
		t.Fatalf("listing taken after completion should enqueue a re-tagged document, got %+v", added)
	}
}

func TestFailedDocumentIsReenqueued(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	q := queue.New(queue.WithClock(func() time.Time { return clock }))

	q.Enqueue(clock, entries(3)...)
	q.Begin()
	listing := clock
	clock = clock.Add(time.Second)
	q.Finish(3, false)

	if added := q.Enqueue(listing, entries(3)...); len(added) != 1 {
		t.Fatalf("failed document should be enqueued again, got %+v", added)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	q := queue.New()
	q.Enqueue(time.Now(), entries(1, 2)...)
	q.Begin()

	snap := q.Snapshot()
	if snap.InFlight == nil || snap.InFlight.ID != 1 || len(snap.Pending) != 1 || snap.StartedAt.IsZero() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	snap.Pending[0].ID = 99
	snap.InFlight.ID = 99
	if got := pendingIDs(q); !equalIDs(got, []int64{2}) {
		t.Fatalf("snapshot mutation leaked into queue: %v", got)
	}
	if q.InFlight().ID != 1 {
		t.Fatal("snapshot mutation leaked into in-flight entry")
	}
}

func TestConcurrentEnqueueAndDrain(t *testing.T) {
	q := queue.New()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := int64(1); id <= 100; id++ {
				q.Enqueue(time.Now(), queue.Entry{ID: id})
			}
		}()
	}

	seen := map[int64]int{}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	drain := func() {
		for {
			entry, ok := q.Begin()
			if !ok {
				return
			}
			seen[entry.ID]++
			q.Finish(entry.ID, true)
		}
	}
	for {
		select {
		case <-done:
			drain()
			if len(seen) != 100 {
				t.Fatalf("expected all 100 documents processed, got %d", len(seen))
			}
			return
		default:
			drain()
		}
	}
}
