package models

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Outbound payloads. Timestamps are Unix milliseconds.

type IncomingCall struct {
	From      string          `json:"from"`
	CallID    string          `json:"callId"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type CallAccepted struct {
	From      string `json:"from"`
	CallID    string `json:"callId"`
	Timestamp int64  `json:"timestamp"`
}

type CallRejected struct {
	From      string `json:"from"`
	CallID    string `json:"callId"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

type CallEnded struct {
	CallID    string `json:"callId"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

type CallTimeout struct {
	CallID string `json:"callId"`
}

type CallError struct {
	CallID string `json:"callId"`
	Error  string `json:"error"`
}

type CallStatus struct {
	CallID  string `json:"callId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ChatMessage is fanned out as receive-message to the room and as
// new-message to a recipient outside it.
type ChatMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
}

// MessageSent acknowledges a send-message to its sender. Delivered
// reports whether the recipient had a live connection.
type MessageSent struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	To        string `json:"to"`
	Delivered bool   `json:"delivered"`
	Timestamp int64  `json:"timestamp"`
}

type Typing struct {
	From     string `json:"from"`
	IsTyping bool   `json:"isTyping"`
	RoomID   string `json:"roomId"`
}

type MessagesRead struct {
	MessageIDs []string `json:"messageIds"`
	RoomID     string   `json:"roomId"`
	ReadBy     string   `json:"readBy"`
	Timestamp  int64    `json:"timestamp"`
}

type UserDisconnected struct {
	UserID string `json:"userId"`
}

// OnlineStatus maps user identity to presence.
type OnlineStatus map[string]bool

type OfferRelay struct {
	From   string          `json:"from"`
	CallID string          `json:"callId"`
	Offer  json.RawMessage `json:"offer"`
}

type AnswerRelay struct {
	From   string          `json:"from"`
	CallID string          `json:"callId"`
	Answer json.RawMessage `json:"answer"`
}

type ICECandidateRelay struct {
	From      string                   `json:"from"`
	CallID    string                   `json:"callId"`
	Candidate *webrtc.ICECandidateInit `json:"candidate"`
}

type MuteStatus struct {
	From    string `json:"from"`
	CallID  string `json:"callId"`
	IsMuted bool   `json:"isMuted"`
}

type SpeakingStatus struct {
	From       string `json:"from"`
	CallID     string `json:"callId"`
	IsSpeaking bool   `json:"isSpeaking"`
}
