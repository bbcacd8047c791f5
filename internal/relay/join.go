package relay

import "github.com/peerline/signaling-relay/internal/metrics"

// checkPasswordLocked enforces the initiator's room password against the
// caller's per-connection retry budget. It reports whether the join may
// proceed; rejections have already been emitted.
func (c *Client) checkPasswordLocked(m Message) bool {
	e := c.e

	if c.passwordTries >= e.cfg.PasswordMaxTries {
		c.ch.Emit(EventPasswordMaxTriesOver, m.RemoteUserID)
		e.metrics.Inc(metrics.PasswordRejections)
		return false
	}
	if m.Password == "" {
		c.passwordTries++
		c.ch.Emit(EventJoinWithPassword, m.RemoteUserID)
		e.metrics.Inc(metrics.PasswordRejections)
		return false
	}
	if m.Password != e.users[m.RemoteUserID].password {
		c.passwordTries++
		c.ch.Emit(EventInvalidPassword, m.RemoteUserID, m.Password)
		e.metrics.Inc(metrics.PasswordRejections)
		return false
	}
	return true
}

// joinRoomLocked fans a join request out to the initiator's room. Capacity is
// evaluated against the initiator's current link count; each unique invitee
// receives the request with remoteUserId rewritten to its own identifier so
// it can link back to the requester through the router.
func (e *Engine) joinRoomLocked(c *Client, m Message) {
	initiator := e.users[m.RemoteUserID]
	if initiator == nil || initiator.ch == nil {
		return
	}

	if initiator.edges.len() >= initiator.maxParticipants {
		c.ch.Emit(EventRoomFull, m.RemoteUserID)
		// Drop any stale edge the initiator already held toward the
		// requester so the rejected join leaves no half-link behind.
		initiator.edges.delete(c.userID)
		e.metrics.Inc(metrics.JoinsRejectedFull)
		return
	}

	type invitee struct {
		id string
		ch Channel
	}
	invitees := []invitee{{initiator.id, initiator.ch}}
	for _, pid := range initiator.edges.ids() {
		invitees = append(invitees, invitee{pid, initiator.edges.get(pid)})
	}

	seen := make(map[string]struct{})
	for _, inv := range invitees {
		if inv.id == c.userID {
			continue
		}
		if _, dup := seen[inv.id]; dup {
			continue
		}
		seen[inv.id] = struct{}{}

		// Star topology: only the initiator learns about the requester.
		if c.oneToMany && inv.id != initiator.id {
			continue
		}
		if inv.ch == nil {
			continue
		}

		fwd := m
		fwd.RemoteUserID = inv.id
		inv.ch.Emit(c.msgEvent, fwd)
	}
	e.metrics.Inc(metrics.JoinsFannedOut)
}
