// Package calls holds the in-memory call state: the active-call table
// with its ring timers, and the buffer of invitations for offline users.
package calls

import (
	"errors"
	"sort"
	"time"

	"github.com/mossy-p/call-signaling/internal/clock"
)

// ErrCallExists is returned when a call ID already has an active record.
var ErrCallExists = errors.New("call already exists")

// Status is the lifecycle state of an active call. Removed calls have
// no record at all.
type Status string

const (
	StatusRinging  Status = "ringing"
	StatusAccepted Status = "accepted"
)

// Record is one active call. Participants is [caller, callee].
type Record struct {
	CallID       string
	Participants [2]string
	Status       Status
	StartTime    time.Time
	AcceptedTime time.Time

	ringTimer *clock.Timer
}

func (r *Record) Caller() string { return r.Participants[0] }
func (r *Record) Callee() string { return r.Participants[1] }

// Involves reports whether userID is a participant.
func (r *Record) Involves(userID string) bool {
	return r.Participants[0] == userID || r.Participants[1] == userID
}

// Peer returns the participant other than userID.
func (r *Record) Peer(userID string) (string, bool) {
	switch userID {
	case r.Participants[0]:
		return r.Participants[1], true
	case r.Participants[1]:
		return r.Participants[0], true
	}
	return "", false
}

func (r *Record) stopTimer() {
	if r.ringTimer != nil {
		r.ringTimer.Stop()
		r.ringTimer = nil
	}
}

// Table maps call IDs to active records. Every record in ringing state
// owns a ring timer that is stopped on any transition out of ringing.
// Not safe for concurrent use.
type Table struct {
	records     map[string]*Record
	clock       clock.Clock
	ringTimeout time.Duration
}

func NewTable(clk clock.Clock, ringTimeout time.Duration) *Table {
	return &Table{
		records:     make(map[string]*Record),
		clock:       clk,
		ringTimeout: ringTimeout,
	}
}

// Create records a ringing call and arms its ring timer. When the timer
// fires, onTimeout receives the record; the callback runs on the clock's
// goroutine and must serialize with other table access before calling
// Expire.
func (t *Table) Create(callID, caller, callee string, onTimeout func(*Record)) (*Record, error) {
	if _, exists := t.records[callID]; exists {
		return nil, ErrCallExists
	}
	rec := &Record{
		CallID:       callID,
		Participants: [2]string{caller, callee},
		Status:       StatusRinging,
		StartTime:    t.clock.Now(),
	}
	rec.ringTimer = t.clock.AfterFunc(t.ringTimeout, func() { onTimeout(rec) })
	t.records[callID] = rec
	return rec, nil
}

func (t *Table) Get(callID string) (*Record, bool) {
	rec, ok := t.records[callID]
	return rec, ok
}

// Accept moves a ringing call to accepted. It reports false if the call
// is absent or not ringing.
func (t *Table) Accept(callID string) (*Record, bool) {
	rec, ok := t.records[callID]
	if !ok || rec.Status != StatusRinging {
		return nil, false
	}
	rec.stopTimer()
	rec.Status = StatusAccepted
	rec.AcceptedTime = t.clock.Now()
	return rec, true
}

// Remove deletes the record for callID in any state.
func (t *Table) Remove(callID string) (*Record, bool) {
	rec, ok := t.records[callID]
	if !ok {
		return nil, false
	}
	rec.stopTimer()
	delete(t.records, callID)
	return rec, true
}

// Expire removes rec if it is still the live record for its call ID and
// still ringing. A timer that lost a race with accept, reject or end is
// thereby a no-op.
func (t *Table) Expire(rec *Record) bool {
	if cur, ok := t.records[rec.CallID]; !ok || cur != rec || rec.Status != StatusRinging {
		return false
	}
	rec.ringTimer = nil
	delete(t.records, rec.CallID)
	return true
}

// ByParticipant returns the records naming userID, ordered by call ID.
func (t *Table) ByParticipant(userID string) []*Record {
	var out []*Record
	for _, rec := range t.records {
		if rec.Involves(userID) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallID < out[j].CallID })
	return out
}

func (t *Table) Len() int {
	return len(t.records)
}

// Close stops every ring timer and empties the table.
func (t *Table) Close() {
	for id, rec := range t.records {
		rec.stopTimer()
		delete(t.records, id)
	}
}
