package calls

import (
	"encoding/json"
	"time"
)

// PendingCall is an invitation that arrived while the callee had no
// live connection.
type PendingCall struct {
	From      string
	CallID    string
	Timestamp time.Time
	Offer     json.RawMessage
}

// PendingBuffer queues invitations per callee in arrival order. An entry
// is deliverable while younger than deliveryWindow and survives a Sweep
// while younger than maxAge. Not safe for concurrent use.
type PendingBuffer struct {
	byCallee       map[string][]PendingCall
	deliveryWindow time.Duration
	maxAge         time.Duration
}

func NewPendingBuffer(deliveryWindow, maxAge time.Duration) *PendingBuffer {
	return &PendingBuffer{
		byCallee:       make(map[string][]PendingCall),
		deliveryWindow: deliveryWindow,
		maxAge:         maxAge,
	}
}

// Enqueue appends entry to calleeID's queue. Entries are not
// deduplicated by call ID.
func (b *PendingBuffer) Enqueue(calleeID string, entry PendingCall) {
	b.byCallee[calleeID] = append(b.byCallee[calleeID], entry)
}

// DrainDeliverable empties calleeID's queue and returns the entries
// still inside the delivery window, oldest first. Expired entries are
// dropped, never redelivered.
func (b *PendingBuffer) DrainDeliverable(calleeID string, now time.Time) []PendingCall {
	queue, ok := b.byCallee[calleeID]
	if !ok {
		return nil
	}
	delete(b.byCallee, calleeID)

	var deliverable []PendingCall
	for _, entry := range queue {
		if now.Sub(entry.Timestamp) < b.deliveryWindow {
			deliverable = append(deliverable, entry)
		}
	}
	return deliverable
}

// Sweep drops entries older than maxAge and removes callees whose queue
// becomes empty. It returns the number of entries dropped.
func (b *PendingBuffer) Sweep(now time.Time) int {
	purged := 0
	for callee, queue := range b.byCallee {
		kept := queue[:0]
		for _, entry := range queue {
			if now.Sub(entry.Timestamp) < b.maxAge {
				kept = append(kept, entry)
			} else {
				purged++
			}
		}
		if len(kept) == 0 {
			delete(b.byCallee, callee)
			continue
		}
		b.byCallee[callee] = kept
	}
	return purged
}

// Len returns the number of queued entries across all callees.
func (b *PendingBuffer) Len() int {
	n := 0
	for _, queue := range b.byCallee {
		n += len(queue)
	}
	return n
}

// Callees returns the number of callees with queued entries.
func (b *PendingBuffer) Callees() int {
	return len(b.byCallee)
}
