package calls

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newBuffer() *PendingBuffer {
	return NewPendingBuffer(30*time.Second, 60*time.Second)
}

func TestDrainDeliverableWindow(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"fresh", 0, 1},
		{"inside window", 29 * time.Second, 1},
		{"at window edge", 30 * time.Second, 0},
		{"past window", 31 * time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuffer()
			b.Enqueue("u2", PendingCall{From: "u1", CallID: "c1", Timestamp: t0})

			got := b.DrainDeliverable("u2", t0.Add(tt.elapsed))
			if len(got) != tt.want {
				t.Fatalf("drained %d entries, want %d", len(got), tt.want)
			}
			if b.Len() != 0 || b.Callees() != 0 {
				t.Fatalf("buffer not emptied: len=%d callees=%d", b.Len(), b.Callees())
			}
		})
	}
}

func TestDrainKeepsOrderAndDuplicates(t *testing.T) {
	b := newBuffer()
	b.Enqueue("u2", PendingCall{From: "u1", CallID: "c1", Timestamp: t0})
	b.Enqueue("u2", PendingCall{From: "u3", CallID: "c2", Timestamp: t0.Add(time.Second)})
	b.Enqueue("u2", PendingCall{From: "u1", CallID: "c1", Timestamp: t0.Add(2 * time.Second)})
	b.Enqueue("u9", PendingCall{From: "u1", CallID: "c9", Timestamp: t0})

	got := b.DrainDeliverable("u2", t0.Add(5*time.Second))
	if len(got) != 3 {
		t.Fatalf("drained %d, want 3", len(got))
	}
	for i, id := range []string{"c1", "c2", "c1"} {
		if got[i].CallID != id {
			t.Errorf("entry %d = %s, want %s", i, got[i].CallID, id)
		}
	}
	if b.Len() != 1 {
		t.Fatalf("other callee's entries touched: len=%d", b.Len())
	}
}

func TestDrainDropsExpiredMixedEntries(t *testing.T) {
	b := newBuffer()
	b.Enqueue("u2", PendingCall{CallID: "old", Timestamp: t0})
	b.Enqueue("u2", PendingCall{CallID: "new", Timestamp: t0.Add(20 * time.Second)})

	got := b.DrainDeliverable("u2", t0.Add(40*time.Second))
	if len(got) != 1 || got[0].CallID != "new" {
		t.Fatalf("drained %+v, want only new", got)
	}
	if again := b.DrainDeliverable("u2", t0.Add(41*time.Second)); len(again) != 0 {
		t.Fatalf("expired entry redelivered: %+v", again)
	}
}

func TestDrainUnknownCallee(t *testing.T) {
	if got := newBuffer().DrainDeliverable("nobody", t0); got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestSweepPurgesOldEntries(t *testing.T) {
	b := newBuffer()
	b.Enqueue("u2", PendingCall{CallID: "a", Timestamp: t0})
	b.Enqueue("u2", PendingCall{CallID: "b", Timestamp: t0.Add(30 * time.Second)})
	b.Enqueue("u3", PendingCall{CallID: "c", Timestamp: t0})

	purged := b.Sweep(t0.Add(60 * time.Second))
	if purged != 2 {
		t.Fatalf("purged %d, want 2", purged)
	}
	if b.Len() != 1 || b.Callees() != 1 {
		t.Fatalf("after sweep len=%d callees=%d, want 1/1", b.Len(), b.Callees())
	}

	b.Sweep(t0.Add(90 * time.Second))
	if b.Len() != 0 || b.Callees() != 0 {
		t.Fatalf("bucket not removed once empty: len=%d callees=%d", b.Len(), b.Callees())
	}
}
