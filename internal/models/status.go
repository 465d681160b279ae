package models

// Status is the diagnostic snapshot served by /api/status.
type Status struct {
	OnlineUsers  int `json:"onlineUsers"`
	ActiveCalls  int `json:"activeCalls"`
	PendingCalls int `json:"pendingCalls"`
	Rooms        int `json:"rooms"`
	TypingUsers  int `json:"typingUsers"`
	Connections  int `json:"connections"`
}

// Presence answers a single-user online query.
type Presence struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}
