package rooms

import (
	"sort"
	"time"
)

// TypingEntry is the last typing-start seen from a user.
type TypingEntry struct {
	UserID     string
	RoomID     string
	LastTyping time.Time
}

// TypingTracker holds one typing entry per user. Not safe for
// concurrent use.
type TypingTracker struct {
	entries    map[string]TypingEntry
	staleAfter time.Duration
}

func NewTypingTracker(staleAfter time.Duration) *TypingTracker {
	return &TypingTracker{
		entries:    make(map[string]TypingEntry),
		staleAfter: staleAfter,
	}
}

// Start creates or refreshes userID's entry.
func (t *TypingTracker) Start(userID, roomID string, now time.Time) {
	t.entries[userID] = TypingEntry{UserID: userID, RoomID: roomID, LastTyping: now}
}

// Stop removes userID's entry and returns it.
func (t *TypingTracker) Stop(userID string) (TypingEntry, bool) {
	entry, ok := t.entries[userID]
	if ok {
		delete(t.entries, userID)
	}
	return entry, ok
}

// Sweep removes entries not refreshed within staleAfter and returns
// them ordered by user ID.
func (t *TypingTracker) Sweep(now time.Time) []TypingEntry {
	var stale []TypingEntry
	for userID, entry := range t.entries {
		if now.Sub(entry.LastTyping) > t.staleAfter {
			stale = append(stale, entry)
			delete(t.entries, userID)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UserID < stale[j].UserID })
	return stale
}

func (t *TypingTracker) Len() int {
	return len(t.entries)
}
