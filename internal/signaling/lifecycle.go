package signaling

import (
	"encoding/json"
	"errors"

	"github.com/mossy-p/call-signaling/internal/calls"
	"github.com/mossy-p/call-signaling/internal/models"
)

// Connect registers a live connection. It stays inert to presence
// lookups until it sends identity-announce.
func (h *Hub) Connect(handle models.Handle, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[handle] = conn
	h.logger.Debug().Str("handle", string(handle)).Msg("connection registered")
}

// Disconnect unwinds every registry for handle: presence, typing, rooms
// and calls, then tells everyone else the user left. Unknown handles are
// ignored.
func (h *Hub) Disconnect(handle models.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[handle]; !ok {
		return
	}
	delete(h.conns, handle)

	userID, announced := h.presence.UnregisterByHandle(handle)
	if announced {
		h.typing.Stop(userID)
	}
	h.rooms.LeaveAll(handle)
	if !announced {
		h.logger.Debug().Str("handle", string(handle)).Msg("unannounced connection closed")
		return
	}

	h.endCallsOf(userID)
	h.mirror.Offline(userID, h.clock.Now())
	h.broadcastAll(models.EventUserDisconnected, models.UserDisconnected{UserID: userID}, "")

	h.logger.Info().Str("user", userID).Str("handle", string(handle)).Msg("user disconnected")
}

// endCallsOf terminates every call userID takes part in and tells each
// other participant the peer disconnected.
func (h *Hub) endCallsOf(userID string) {
	for _, rec := range h.active.ByParticipant(userID) {
		h.active.Remove(rec.CallID)
		peer, _ := rec.Peer(userID)
		if peer != userID {
			h.sendToUser(peer, models.EventCallEnded, models.CallEnded{
				CallID:    rec.CallID,
				Reason:    models.ReasonPeerDisconnected,
				Timestamp: h.nowMillis(),
			})
		}
		h.logger.Info().Str("call", rec.CallID).Str("user", userID).Msg("call ended by disconnect")
	}
}

// releaseUser forfeits userID's calls and typing state after it lost its
// canonical handle to a re-announcement.
func (h *Hub) releaseUser(userID string) {
	h.typing.Stop(userID)
	h.endCallsOf(userID)
	h.mirror.Offline(userID, h.clock.Now())
}

func (h *Hub) handleAnnounce(handle models.Handle, data []byte) error {
	var p models.AnnouncePayload
	if err := decode(models.EventIdentityAnnounce, data, &p); err != nil {
		return err
	}
	if p.UserID == "" {
		return missing(models.EventIdentityAnnounce, "userId")
	}

	displaced := h.presence.RegisterOnline(p.UserID, handle)
	if displaced.Handle != "" {
		// Same identity on a new connection: the old one becomes inert
		// and forfeits its calls and rooms.
		h.rooms.LeaveAll(displaced.Handle)
		h.releaseUser(p.UserID)
		h.logger.Info().Str("user", p.UserID).Str("old_handle", string(displaced.Handle)).Msg("identity moved to new connection")
	}
	if displaced.UserID != "" {
		h.releaseUser(displaced.UserID)
		h.logger.Info().Str("user", displaced.UserID).Str("handle", string(handle)).Msg("connection switched identity")
	}

	now := h.clock.Now()
	h.mirror.Online(p.UserID, now)
	h.logger.Info().Str("user", p.UserID).Str("handle", string(handle)).Msg("user online")

	for _, pc := range h.pending.DrainDeliverable(p.UserID, now) {
		if !h.presence.IsOnline(pc.From) {
			h.logger.Debug().Str("call", pc.CallID).Str("from", pc.From).Msg("caller gone, buffered invitation dropped")
			continue
		}
		if err := h.deliverInvitation(pc.From, p.UserID, pc.CallID, pc.Offer, handle); err != nil {
			h.sendToUser(pc.From, models.EventCallError, models.CallError{CallID: pc.CallID, Error: err.Error()})
		}
	}
	return nil
}

// deliverInvitation creates the ringing record for a call and sends the
// invitation to the callee's live handle.
func (h *Hub) deliverInvitation(caller, callee, callID string, offer json.RawMessage, calleeHandle models.Handle) error {
	if _, err := h.active.Create(callID, caller, callee, h.onRingTimeout); err != nil {
		if errors.Is(err, calls.ErrCallExists) {
			h.logger.Debug().Str("call", callID).Msg("invitation for existing call dropped")
		}
		return err
	}
	h.sendTo(calleeHandle, models.EventIncomingCall, models.IncomingCall{
		From:      caller,
		CallID:    callID,
		Offer:     offer,
		Timestamp: h.nowMillis(),
	})
	h.logger.Info().Str("call", callID).Str("from", caller).Str("to", callee).Msg("call ringing")
	return nil
}

// onRingTimeout runs on the clock's goroutine when a call rang for the
// full ring timeout.
func (h *Hub) onRingTimeout(rec *calls.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.active.Expire(rec) {
		return
	}
	for _, userID := range rec.Participants {
		h.sendToUser(userID, models.EventCallTimeout, models.CallTimeout{CallID: rec.CallID})
	}
	h.logger.Info().Str("call", rec.CallID).Msg("call timed out")
}
