// Package signaling is the call-signaling and presence engine. A Hub owns
// the presence, call, room and typing registries behind a single mutex:
// each inbound event, ring timeout and sweep runs to completion before
// the next one starts.
package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/mossy-p/call-signaling/internal/calls"
	"github.com/mossy-p/call-signaling/internal/clock"
	"github.com/mossy-p/call-signaling/internal/models"
	"github.com/mossy-p/call-signaling/internal/presence"
	"github.com/mossy-p/call-signaling/internal/rooms"
)

var (
	// ErrMalformedEvent is returned for frames that cannot be decoded or
	// lack a required field. The event is dropped.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent is returned for frames naming an unsupported event.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrNotAnnounced is returned when an event needs the sender's
	// identity but the connection never sent identity-announce.
	ErrNotAnnounced = errors.New("connection has not announced an identity")
)

// Conn is the hub's view of a transport connection. Send must not block;
// it reports false when the frame was dropped.
type Conn interface {
	Send(data []byte) bool
}

// PresenceMirror is told about presence transitions so they can be
// published outside the process. Implementations must not block.
type PresenceMirror interface {
	Online(userID string, at time.Time)
	Offline(userID string, at time.Time)
}

type noopMirror struct{}

func (noopMirror) Online(string, time.Time)  {}
func (noopMirror) Offline(string, time.Time) {}

// Options holds the hub's timing parameters.
type Options struct {
	RingTimeout           time.Duration
	PendingDeliveryWindow time.Duration
	PendingMaxAge         time.Duration
	PendingSweepInterval  time.Duration
	TypingStaleAfter      time.Duration
	TypingSweepInterval   time.Duration
}

func DefaultOptions() Options {
	return Options{
		RingTimeout:           30 * time.Second,
		PendingDeliveryWindow: 30 * time.Second,
		PendingMaxAge:         60 * time.Second,
		PendingSweepInterval:  60 * time.Second,
		TypingStaleAfter:      5 * time.Second,
		TypingSweepInterval:   5 * time.Second,
	}
}

type handlerFunc func(handle models.Handle, data []byte) error

// Hub coordinates every registry and emits outbound frames.
type Hub struct {
	mu       sync.Mutex
	conns    map[models.Handle]Conn
	presence *presence.Registry
	pending  *calls.PendingBuffer
	active   *calls.Table
	rooms    *rooms.Registry
	typing   *rooms.TypingTracker

	handlers map[models.EventType]handlerFunc
	clock    clock.Clock
	mirror   PresenceMirror
	opts     Options
	logger   zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHub builds a hub with empty registries. A nil mirror disables
// presence publishing.
func NewHub(logger zerolog.Logger, clk clock.Clock, mirror PresenceMirror, opts Options) *Hub {
	if mirror == nil {
		mirror = noopMirror{}
	}
	h := &Hub{
		conns:    make(map[models.Handle]Conn),
		presence: presence.NewRegistry(),
		pending:  calls.NewPendingBuffer(opts.PendingDeliveryWindow, opts.PendingMaxAge),
		active:   calls.NewTable(clk, opts.RingTimeout),
		rooms:    rooms.NewRegistry(),
		typing:   rooms.NewTypingTracker(opts.TypingStaleAfter),
		clock:    clk,
		mirror:   mirror,
		opts:     opts,
		logger:   logger.With().Str("component", "signaling").Logger(),
		done:     make(chan struct{}),
	}
	h.handlers = map[models.EventType]handlerFunc{
		models.EventIdentityAnnounce: h.handleAnnounce,
		models.EventJoinRoom:         h.handleJoinRoom,
		models.EventLeaveRoom:        h.handleLeaveRoom,
		models.EventSendMessage:      h.handleSendMessage,
		models.EventTyping:           h.handleTyping,
		models.EventMessageRead:      h.handleMessageRead,
		models.EventGetOnlineStatus:  h.handleGetOnlineStatus,
		models.EventInitiateCall:     h.handleInitiateCall,
		models.EventAcceptCall:       h.handleAcceptCall,
		models.EventRejectCall:       h.handleRejectCall,
		models.EventEndCall:          h.handleEndCall,
		models.EventOffer:            h.handleOffer,
		models.EventAnswer:           h.handleAnswer,
		models.EventICECandidate:     h.handleICECandidate,
		models.EventMuteStatus:       h.handleMuteStatus,
		models.EventSpeakingStatus:   h.handleSpeakingStatus,
		models.EventCallChatMessage:  h.handleCallChat,
	}
	return h
}

// Dispatch decodes one inbound frame and runs its handler under the hub
// lock. Errors describe why the frame was dropped; nothing is sent back
// to the client for them.
func (h *Hub) Dispatch(handle models.Handle, raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: invalid JSON", ErrMalformedEvent)
	}
	event := gjson.GetBytes(raw, "event")
	if event.Type != gjson.String || event.Str == "" {
		return fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}
	handler, ok := h.handlers[models.EventType(event.Str)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Str)
	}
	data := gjson.GetBytes(raw, "data")
	if !data.IsObject() {
		return fmt.Errorf("%w: %s has no data object", ErrMalformedEvent, event.Str)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, live := h.conns[handle]; !live {
		return nil
	}
	return handler(handle, []byte(data.Raw))
}

func decode(event models.EventType, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, event, err)
	}
	return nil
}

func missing(event models.EventType, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrMalformedEvent, event, field)
}

// senderOf returns the identity announced on handle.
func (h *Hub) senderOf(event models.EventType, handle models.Handle) (string, error) {
	userID, ok := h.presence.UserOf(handle)
	if !ok {
		return "", fmt.Errorf("%s: %w", event, ErrNotAnnounced)
	}
	return userID, nil
}

func (h *Hub) nowMillis() int64 {
	return h.clock.Now().UnixMilli()
}

func (h *Hub) marshal(event models.EventType, data any) ([]byte, bool) {
	payload, err := json.Marshal(models.Frame{Event: event, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(event)).Msg("failed to marshal frame")
		return nil, false
	}
	return payload, true
}

func (h *Hub) write(handle models.Handle, conn Conn, event models.EventType, payload []byte) bool {
	if conn.Send(payload) {
		return true
	}
	h.logger.Warn().Str("handle", string(handle)).Str("event", string(event)).Msg("send buffer full, frame dropped")
	return false
}

// sendTo emits one frame to handle. Must be called with h.mu held.
func (h *Hub) sendTo(handle models.Handle, event models.EventType, data any) bool {
	conn, ok := h.conns[handle]
	if !ok {
		return false
	}
	payload, ok := h.marshal(event, data)
	if !ok {
		return false
	}
	return h.write(handle, conn, event, payload)
}

// sendToUser emits one frame to userID's live handle, if any.
func (h *Hub) sendToUser(userID string, event models.EventType, data any) bool {
	handle, ok := h.presence.Lookup(userID)
	if !ok {
		return false
	}
	return h.sendTo(handle, event, data)
}

// broadcastRoom emits to every member of roomID except exclude.
func (h *Hub) broadcastRoom(roomID string, event models.EventType, data any, exclude models.Handle) int {
	members := h.rooms.Members(roomID)
	if len(members) == 0 {
		return 0
	}
	payload, ok := h.marshal(event, data)
	if !ok {
		return 0
	}
	sent := 0
	for _, member := range members {
		if member == exclude {
			continue
		}
		if conn, ok := h.conns[member]; ok && h.write(member, conn, event, payload) {
			sent++
		}
	}
	return sent
}

// broadcastAll emits to every live connection except exclude.
func (h *Hub) broadcastAll(event models.EventType, data any, exclude models.Handle) {
	payload, ok := h.marshal(event, data)
	if !ok {
		return
	}
	for handle, conn := range h.conns {
		if handle != exclude {
			h.write(handle, conn, event, payload)
		}
	}
}

// Start launches the pending-call and typing sweepers.
func (h *Hub) Start() {
	h.wg.Add(2)
	go h.runSweeper(h.opts.PendingSweepInterval, h.SweepPending)
	go h.runSweeper(h.opts.TypingSweepInterval, h.SweepTyping)
}

func (h *Hub) runSweeper(interval time.Duration, sweep func()) {
	defer h.wg.Done()
	ticker := h.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// SweepPending purges buffered invitations older than the maximum age.
func (h *Hub) SweepPending() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if purged := h.pending.Sweep(h.clock.Now()); purged > 0 {
		h.logger.Debug().Int("purged", purged).Msg("swept expired pending calls")
	}
}

// SweepTyping drops stale typing indicators and tells the room the user
// stopped typing.
func (h *Hub) SweepTyping() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, entry := range h.typing.Sweep(h.clock.Now()) {
		exclude, _ := h.presence.Lookup(entry.UserID)
		h.broadcastRoom(entry.RoomID, models.EventTyping, models.Typing{
			From:     entry.UserID,
			IsTyping: false,
			RoomID:   entry.RoomID,
		}, exclude)
	}
}

// Close stops the sweepers and cancels every ring timer. Registries are
// discarded with the process.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		h.active.Close()
		h.mu.Unlock()
	})
}

// Status returns registry counts for diagnostics.
func (h *Hub) Status() models.Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	return models.Status{
		OnlineUsers:  h.presence.Count(),
		ActiveCalls:  h.active.Len(),
		PendingCalls: h.pending.Len(),
		Rooms:        h.rooms.Len(),
		TypingUsers:  h.typing.Len(),
		Connections:  len(h.conns),
	}
}

// IsOnline reports whether userID has a live, announced connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.IsOnline(userID)
}
