package models

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// EventType names a signaling event carried in a Frame.
type EventType string

// Inbound events (client → server).
const (
	EventIdentityAnnounce EventType = "identity-announce"
	EventJoinRoom         EventType = "join-room"
	EventLeaveRoom        EventType = "leave-room"
	EventSendMessage      EventType = "send-message"
	EventTyping           EventType = "typing"
	EventMessageRead      EventType = "message-read"
	EventInitiateCall     EventType = "initiate-call"
	EventAcceptCall       EventType = "accept-call"
	EventRejectCall       EventType = "reject-call"
	EventEndCall          EventType = "end-call"
	EventOffer            EventType = "offer"
	EventAnswer           EventType = "answer"
	EventICECandidate     EventType = "ice-candidate"
	EventMuteStatus       EventType = "mute-status"
	EventSpeakingStatus   EventType = "speaking-status"
	EventCallChatMessage  EventType = "chat-message"
	EventGetOnlineStatus  EventType = "get-online-status"
)

// Outbound events (server → client). Relayed negotiation events reuse
// the inbound names above.
const (
	EventIncomingCall       EventType = "incoming-call"
	EventCallAccepted       EventType = "call-accepted"
	EventCallRejected       EventType = "call-rejected"
	EventCallEnded          EventType = "call-ended"
	EventCallTimeout        EventType = "call-timeout"
	EventCallError          EventType = "call-error"
	EventCallStatus         EventType = "call-status"
	EventNewMessage         EventType = "new-message"
	EventReceiveMessage     EventType = "receive-message"
	EventMessageSent        EventType = "message-sent"
	EventMessagesRead       EventType = "messages-read"
	EventMessagesReadUpdate EventType = "messages-read-update"
	EventUserDisconnected   EventType = "user-disconnected"
	EventOnlineStatus       EventType = "online-status"
)

// Frame is the wire envelope for every message in both directions:
// {"event": "...", "data": {...}}.
type Frame struct {
	Event EventType `json:"event"`
	Data  any       `json:"data,omitempty"`
}

// Call end reasons.
const (
	ReasonPeerDisconnected = "peer disconnected"
	ReasonEnded            = "ended"
	ReasonRejected         = "rejected"
)

// AnnouncePayload binds a connection to a user identity.
type AnnouncePayload struct {
	UserID string `json:"userId"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

type TypingPayload struct {
	To       string `json:"to"`
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type MessageReadPayload struct {
	MessageIDs []string `json:"messageIds"`
	RoomID     string   `json:"roomId"`
	From       string   `json:"from"`
}

type OnlineStatusQuery struct {
	UserIDs []string `json:"userIds"`
}

// InitiateCallPayload carries an optional SDP offer. Offers and answers
// are passed through untouched; only the browsers interpret them.
type InitiateCallPayload struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	CallID string          `json:"callId"`
	Offer  json.RawMessage `json:"offer,omitempty"`
}

type AcceptCallPayload struct {
	CallID string `json:"callId"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type RejectCallPayload struct {
	CallID string `json:"callId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

type EndCallPayload struct {
	CallID string `json:"callId"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// OfferPayload carries an SDP offer (initial or renegotiation).
type OfferPayload struct {
	To     string          `json:"to"`
	CallID string          `json:"callId"`
	Offer  json.RawMessage `json:"offer"`
}

type AnswerPayload struct {
	To     string          `json:"to"`
	CallID string          `json:"callId"`
	Answer json.RawMessage `json:"answer"`
}

type ICECandidatePayload struct {
	To        string                   `json:"to"`
	CallID    string                   `json:"callId"`
	Candidate *webrtc.ICECandidateInit `json:"candidate"`
}

type MuteStatusPayload struct {
	To      string `json:"to"`
	CallID  string `json:"callId"`
	IsMuted bool   `json:"isMuted"`
}

type SpeakingStatusPayload struct {
	To         string `json:"to"`
	CallID     string `json:"callId"`
	IsSpeaking bool   `json:"isSpeaking"`
}

// CallChatPayload addresses an in-call chat message. The rest of the
// object (message, senderName, client ids) is relayed as sent.
type CallChatPayload struct {
	To     string `json:"to"`
	CallID string `json:"callId"`
}
