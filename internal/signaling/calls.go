package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/mossy-p/call-signaling/internal/calls"
	"github.com/mossy-p/call-signaling/internal/models"
)

const offlineMessage = "User is offline. They will see the call if they come online shortly."

func (h *Hub) handleInitiateCall(handle models.Handle, data []byte) error {
	var p models.InitiateCallPayload
	if err := decode(models.EventInitiateCall, data, &p); err != nil {
		return err
	}
	switch {
	case p.From == "":
		return missing(models.EventInitiateCall, "from")
	case p.To == "":
		return missing(models.EventInitiateCall, "to")
	case p.CallID == "":
		return missing(models.EventInitiateCall, "callId")
	}

	if p.From == p.To {
		h.sendTo(handle, models.EventCallError, models.CallError{CallID: p.CallID, Error: "cannot call yourself"})
		return nil
	}
	if _, exists := h.active.Get(p.CallID); exists {
		h.sendTo(handle, models.EventCallError, models.CallError{CallID: p.CallID, Error: calls.ErrCallExists.Error()})
		return nil
	}

	calleeHandle, online := h.presence.Lookup(p.To)
	if !online {
		h.pending.Enqueue(p.To, calls.PendingCall{
			From:      p.From,
			CallID:    p.CallID,
			Timestamp: h.clock.Now(),
			Offer:     p.Offer,
		})
		h.sendTo(handle, models.EventCallStatus, models.CallStatus{
			CallID:  p.CallID,
			Status:  "pending",
			Message: offlineMessage,
		})
		h.logger.Info().Str("call", p.CallID).Str("from", p.From).Str("to", p.To).Msg("callee offline, invitation buffered")
		return nil
	}

	return h.deliverInvitation(p.From, p.To, p.CallID, p.Offer, calleeHandle)
}

func (h *Hub) handleAcceptCall(_ models.Handle, data []byte) error {
	var p models.AcceptCallPayload
	if err := decode(models.EventAcceptCall, data, &p); err != nil {
		return err
	}
	switch {
	case p.CallID == "":
		return missing(models.EventAcceptCall, "callId")
	case p.From == "":
		return missing(models.EventAcceptCall, "from")
	case p.To == "":
		return missing(models.EventAcceptCall, "to")
	}

	rec, ok := h.active.Get(p.CallID)
	if !ok {
		h.logger.Debug().Str("call", p.CallID).Msg("accept for unknown call ignored")
		return nil
	}
	if rec.Callee() != p.From || rec.Caller() != p.To {
		h.logger.Warn().Str("call", p.CallID).Str("from", p.From).Str("to", p.To).Msg("accept from non-callee ignored")
		return nil
	}
	if _, ok := h.active.Accept(p.CallID); !ok {
		h.logger.Debug().Str("call", p.CallID).Msg("accept for call no longer ringing ignored")
		return nil
	}

	h.sendToUser(p.To, models.EventCallAccepted, models.CallAccepted{
		From:      p.From,
		CallID:    p.CallID,
		Timestamp: h.nowMillis(),
	})
	h.logger.Info().Str("call", p.CallID).Msg("call accepted")
	return nil
}

// counterpart checks that sender takes part in rec and that to is the
// other participant.
func counterpart(rec *calls.Record, sender, to string) bool {
	peer, ok := rec.Peer(sender)
	return ok && peer == to && sender != to
}

func (h *Hub) handleRejectCall(handle models.Handle, data []byte) error {
	var p models.RejectCallPayload
	if err := decode(models.EventRejectCall, data, &p); err != nil {
		return err
	}
	switch {
	case p.CallID == "":
		return missing(models.EventRejectCall, "callId")
	case p.To == "":
		return missing(models.EventRejectCall, "to")
	}

	sender, err := h.senderOf(models.EventRejectCall, handle)
	if err != nil {
		return err
	}

	rec, ok := h.active.Get(p.CallID)
	if !ok {
		h.logger.Debug().Str("call", p.CallID).Msg("reject for unknown call ignored")
		return nil
	}
	if !counterpart(rec, sender, p.To) {
		h.logger.Warn().Str("call", p.CallID).Str("sender", sender).Str("to", p.To).Msg("reject from non-participant ignored")
		return nil
	}
	h.active.Remove(p.CallID)

	reason := p.Reason
	if reason == "" {
		reason = models.ReasonRejected
	}
	h.sendToUser(p.To, models.EventCallRejected, models.CallRejected{
		From:      sender,
		CallID:    p.CallID,
		Reason:    reason,
		Timestamp: h.nowMillis(),
	})
	h.logger.Info().Str("call", p.CallID).Str("reason", reason).Msg("call rejected")
	return nil
}

func (h *Hub) handleEndCall(handle models.Handle, data []byte) error {
	var p models.EndCallPayload
	if err := decode(models.EventEndCall, data, &p); err != nil {
		return err
	}
	switch {
	case p.CallID == "":
		return missing(models.EventEndCall, "callId")
	case p.To == "":
		return missing(models.EventEndCall, "to")
	}

	sender, err := h.senderOf(models.EventEndCall, handle)
	if err != nil {
		return err
	}

	rec, ok := h.active.Get(p.CallID)
	if !ok {
		h.logger.Debug().Str("call", p.CallID).Msg("end for unknown call ignored")
		return nil
	}
	if !counterpart(rec, sender, p.To) {
		h.logger.Warn().Str("call", p.CallID).Str("sender", sender).Str("to", p.To).Msg("end from non-participant ignored")
		return nil
	}
	h.active.Remove(p.CallID)

	reason := p.Reason
	if reason == "" {
		reason = models.ReasonEnded
	}
	h.sendToUser(p.To, models.EventCallEnded, models.CallEnded{
		CallID:    p.CallID,
		Reason:    reason,
		Timestamp: h.nowMillis(),
	})
	h.logger.Info().Str("call", p.CallID).Str("reason", reason).Msg("call ended")
	return nil
}

// absent reports whether an opaque payload field was left out or null.
func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// relay forwards a negotiation frame to target if it is online. Nothing
// is buffered for offline targets.
func (h *Hub) relay(event models.EventType, target, callID string, data any) {
	if !h.sendToUser(target, event, data) {
		h.logger.Debug().Str("event", string(event)).Str("call", callID).Str("to", target).Msg("relay target offline, dropped")
	}
}

func (h *Hub) handleOffer(handle models.Handle, data []byte) error {
	var p models.OfferPayload
	if err := decode(models.EventOffer, data, &p); err != nil {
		return err
	}
	if p.To == "" {
		return missing(models.EventOffer, "to")
	}
	if absent(p.Offer) {
		return missing(models.EventOffer, "offer")
	}
	from, err := h.senderOf(models.EventOffer, handle)
	if err != nil {
		return err
	}
	h.relay(models.EventOffer, p.To, p.CallID, models.OfferRelay{From: from, CallID: p.CallID, Offer: p.Offer})
	return nil
}

func (h *Hub) handleAnswer(handle models.Handle, data []byte) error {
	var p models.AnswerPayload
	if err := decode(models.EventAnswer, data, &p); err != nil {
		return err
	}
	if p.To == "" {
		return missing(models.EventAnswer, "to")
	}
	if absent(p.Answer) {
		return missing(models.EventAnswer, "answer")
	}
	from, err := h.senderOf(models.EventAnswer, handle)
	if err != nil {
		return err
	}
	h.relay(models.EventAnswer, p.To, p.CallID, models.AnswerRelay{From: from, CallID: p.CallID, Answer: p.Answer})
	return nil
}

func (h *Hub) handleICECandidate(handle models.Handle, data []byte) error {
	var p models.ICECandidatePayload
	if err := decode(models.EventICECandidate, data, &p); err != nil {
		return err
	}
	if p.To == "" {
		return missing(models.EventICECandidate, "to")
	}
	if p.Candidate == nil {
		return missing(models.EventICECandidate, "candidate")
	}
	from, err := h.senderOf(models.EventICECandidate, handle)
	if err != nil {
		return err
	}
	h.relay(models.EventICECandidate, p.To, p.CallID, models.ICECandidateRelay{From: from, CallID: p.CallID, Candidate: p.Candidate})
	return nil
}

func (h *Hub) handleMuteStatus(handle models.Handle, data []byte) error {
	var p models.MuteStatusPayload
	if err := decode(models.EventMuteStatus, data, &p); err != nil {
		return err
	}
	if p.To == "" {
		return missing(models.EventMuteStatus, "to")
	}
	from, err := h.senderOf(models.EventMuteStatus, handle)
	if err != nil {
		return err
	}
	h.relay(models.EventMuteStatus, p.To, p.CallID, models.MuteStatus{From: from, CallID: p.CallID, IsMuted: p.IsMuted})
	return nil
}

func (h *Hub) handleSpeakingStatus(handle models.Handle, data []byte) error {
	var p models.SpeakingStatusPayload
	if err := decode(models.EventSpeakingStatus, data, &p); err != nil {
		return err
	}
	if p.To == "" {
		return missing(models.EventSpeakingStatus, "to")
	}
	from, err := h.senderOf(models.EventSpeakingStatus, handle)
	if err != nil {
		return err
	}
	h.relay(models.EventSpeakingStatus, p.To, p.CallID, models.SpeakingStatus{From: from, CallID: p.CallID, IsSpeaking: p.IsSpeaking})
	return nil
}

func (h *Hub) handleCallChat(handle models.Handle, data []byte) error {
	var p models.CallChatPayload
	if err := decode(models.EventCallChatMessage, data, &p); err != nil {
		return err
	}
	if p.To == "" {
		return missing(models.EventCallChatMessage, "to")
	}
	from, err := h.senderOf(models.EventCallChatMessage, handle)
	if err != nil {
		return err
	}
	out, err := sjson.SetBytes(data, "from", from)
	if err == nil {
		out, err = sjson.SetBytes(out, "timestamp", h.nowMillis())
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, models.EventCallChatMessage, err)
	}
	h.relay(models.EventCallChatMessage, p.To, p.CallID, json.RawMessage(out))
	return nil
}
