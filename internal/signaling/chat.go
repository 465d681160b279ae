package signaling

import (
	"github.com/google/uuid"

	"github.com/mossy-p/call-signaling/internal/models"
)

func (h *Hub) handleJoinRoom(handle models.Handle, data []byte) error {
	var p models.RoomPayload
	if err := decode(models.EventJoinRoom, data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return missing(models.EventJoinRoom, "roomId")
	}
	if h.rooms.Join(p.RoomID, handle) {
		h.logger.Debug().Str("room", p.RoomID).Str("handle", string(handle)).Msg("joined room")
	}
	return nil
}

func (h *Hub) handleLeaveRoom(handle models.Handle, data []byte) error {
	var p models.RoomPayload
	if err := decode(models.EventLeaveRoom, data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return missing(models.EventLeaveRoom, "roomId")
	}
	if h.rooms.Leave(p.RoomID, handle) {
		h.logger.Debug().Str("room", p.RoomID).Str("handle", string(handle)).Msg("left room")
	}
	return nil
}

// handleSendMessage fans a chat message out to the room, delivers it
// directly to a recipient who has not joined the room, and acknowledges
// the sender.
func (h *Hub) handleSendMessage(handle models.Handle, data []byte) error {
	var p models.SendMessagePayload
	if err := decode(models.EventSendMessage, data, &p); err != nil {
		return err
	}
	switch {
	case p.From == "":
		return missing(models.EventSendMessage, "from")
	case p.To == "":
		return missing(models.EventSendMessage, "to")
	case p.RoomID == "":
		return missing(models.EventSendMessage, "roomId")
	case p.Message == "":
		return missing(models.EventSendMessage, "message")
	}

	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		From:      p.From,
		To:        p.To,
		Message:   p.Message,
		RoomID:    p.RoomID,
		Timestamp: h.nowMillis(),
	}
	h.broadcastRoom(p.RoomID, models.EventReceiveMessage, msg, handle)

	recipient, delivered := h.presence.Lookup(p.To)
	if delivered && recipient != handle && !h.rooms.Contains(p.RoomID, recipient) {
		h.sendTo(recipient, models.EventNewMessage, msg)
	}

	h.sendTo(handle, models.EventMessageSent, models.MessageSent{
		ID:        msg.ID,
		RoomID:    p.RoomID,
		To:        p.To,
		Delivered: delivered,
		Timestamp: msg.Timestamp,
	})
	return nil
}

func (h *Hub) handleTyping(handle models.Handle, data []byte) error {
	var p models.TypingPayload
	if err := decode(models.EventTyping, data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return missing(models.EventTyping, "roomId")
	}
	from, err := h.senderOf(models.EventTyping, handle)
	if err != nil {
		return err
	}

	if p.IsTyping {
		h.typing.Start(from, p.RoomID, h.clock.Now())
	} else {
		h.typing.Stop(from)
	}

	ev := models.Typing{From: from, IsTyping: p.IsTyping, RoomID: p.RoomID}
	h.broadcastRoom(p.RoomID, models.EventTyping, ev, handle)
	if p.To != "" {
		if recipient, ok := h.presence.Lookup(p.To); ok && recipient != handle && !h.rooms.Contains(p.RoomID, recipient) {
			h.sendTo(recipient, models.EventTyping, ev)
		}
	}
	return nil
}

// handleMessageRead tells the original sender and the room that the
// connection's user has read the given messages.
func (h *Hub) handleMessageRead(handle models.Handle, data []byte) error {
	var p models.MessageReadPayload
	if err := decode(models.EventMessageRead, data, &p); err != nil {
		return err
	}
	switch {
	case len(p.MessageIDs) == 0:
		return missing(models.EventMessageRead, "messageIds")
	case p.RoomID == "":
		return missing(models.EventMessageRead, "roomId")
	case p.From == "":
		return missing(models.EventMessageRead, "from")
	}
	reader, err := h.senderOf(models.EventMessageRead, handle)
	if err != nil {
		return err
	}

	ev := models.MessagesRead{
		MessageIDs: p.MessageIDs,
		RoomID:     p.RoomID,
		ReadBy:     reader,
		Timestamp:  h.nowMillis(),
	}
	h.sendToUser(p.From, models.EventMessagesRead, ev)
	h.broadcastRoom(p.RoomID, models.EventMessagesReadUpdate, ev, handle)
	return nil
}

func (h *Hub) handleGetOnlineStatus(handle models.Handle, data []byte) error {
	var q models.OnlineStatusQuery
	if err := decode(models.EventGetOnlineStatus, data, &q); err != nil {
		return err
	}
	if len(q.UserIDs) == 0 {
		return missing(models.EventGetOnlineStatus, "userIds")
	}

	status := make(models.OnlineStatus, len(q.UserIDs))
	for _, userID := range q.UserIDs {
		status[userID] = h.presence.IsOnline(userID)
	}
	h.sendTo(handle, models.EventOnlineStatus, status)
	return nil
}

// OnlineStatus reports presence for each of userIDs.
func (h *Hub) OnlineStatus(userIDs []string) models.OnlineStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := make(models.OnlineStatus, len(userIDs))
	for _, userID := range userIDs {
		status[userID] = h.presence.IsOnline(userID)
	}
	return status
}
