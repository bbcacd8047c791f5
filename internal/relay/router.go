package relay

import "github.com/peerline/signaling-relay/internal/metrics"

// AckFunc delivers a one-shot callback response to the originating client.
type AckFunc func(args ...any)

// HandleMessage is the entry point for every payload arriving on the
// connection's message event.
func (c *Client) HandleMessage(m Message, ack AckFunc) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	// remoteUserId must denote someone else.
	if m.RemoteUserID != "" && m.RemoteUserID == c.userID {
		return
	}

	switch m.Kind {
	case KindSystemPresence:
		if ack == nil {
			return
		}
		if m.PresenceUserID == c.userID {
			ack(false, c.userID)
			return
		}
		_, ok := e.users[m.PresenceUserID]
		ack(ok, m.PresenceUserID)

	case KindJoinRequest:
		e.metrics.Inc(metrics.JoinRequests)

		initiator := e.users[m.RemoteUserID]
		if initiator != nil && initiator.password != "" && !c.checkPasswordLocked(m) {
			return
		}
		if initiator != nil && initiator.ch != nil {
			e.joinRoomLocked(c, m)
			return
		}

		// Initiator absent or still pending: self-register the sender and
		// poll until the initiator shows up with a live channel.
		e.ensureSenderLocked(c, m.Sender)
		go e.presenceWait(c, m)

	case KindModerationShift:
		if m.FiredOnLeave {
			// Captured, not delivered; replayed on the sender's disconnect.
			e.deferred[m.Sender] = m
			return
		}
		e.routeLocked(c.ch, c.msgEvent, m)

	default:
		e.ensureSenderLocked(c, m.Sender)
		e.routeLocked(c.ch, c.msgEvent, m)
	}
}

// ensureSenderLocked registers the sender under its claimed identifier if the
// registry has never seen it. The record is owned by the handling connection.
func (e *Engine) ensureSenderLocked(c *Client, sender string) {
	if sender == "" {
		return
	}
	if e.users[sender] == nil {
		rec := e.placeholderLocked(sender)
		rec.ch = c.ch
	}
}

// routeLocked delivers m from its sender to m.RemoteUserID, lazily inserting
// the edge pair on first contact. Messages without a usable edge are dropped
// silently: relaying is best-effort by design of the protocol.
func (e *Engine) routeLocked(origin Channel, msgEvent string, m Message) {
	sender := e.users[m.Sender]
	if sender == nil {
		if origin != nil {
			origin.Emit(EventUserNotFound, m.Sender)
		}
		e.metrics.Inc(metrics.UserNotFound)
		return
	}

	if !m.UserLeft && m.RemoteUserID != "" && !sender.edges.has(m.RemoteUserID) {
		if e.users[m.RemoteUserID] != nil {
			e.linkLocked(sender, m.RemoteUserID)
		}
	}

	edgeCh := sender.edges.get(m.RemoteUserID)
	if edgeCh == nil {
		e.metrics.Inc(metrics.MessagesDropped)
		return
	}

	m.Extra = sender.extra
	edgeCh.Emit(msgEvent, m)
	e.metrics.Inc(metrics.MessagesRelayed)
}

// linkLocked inserts the edge pair sender<->remoteID, creating a pending
// placeholder for remoteID when the registry has no record for it. Each side
// with a live channel is notified of the new link.
func (e *Engine) linkLocked(sender *record, remoteID string) {
	remote := e.users[remoteID]
	if remote == nil {
		remote = e.placeholderLocked(remoteID)
	}

	sender.edges.put(remoteID, remote.ch)
	if sender.ch != nil {
		sender.ch.Emit(EventUserConnected, remoteID)
	}

	remote.edges.put(sender.id, sender.ch)
	if remote.ch != nil {
		remote.ch.Emit(EventUserConnected, sender.id)
	}
}
