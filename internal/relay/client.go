package relay

import (
	"encoding/json"

	"github.com/peerline/signaling-relay/internal/metrics"
)

// Client is the engine-side handle for one connection. The transport creates
// it via Engine.Connect, feeds it inbound events, and calls Disconnect exactly
// once when the underlying channel closes.
//
// Mutable fields are guarded by the engine mutex; every method takes it.
type Client struct {
	e  *Engine
	ch Channel

	msgEvent  string
	sessionID string
	oneToMany bool

	// handshake values reused when the connection re-registers (changed-uuid
	// falling back to a fresh registration).
	hsExtra           json.RawMessage
	hsMaxParticipants int

	userID        string
	passwordTries int
	closed        bool
}

func (c *Client) UserID() string {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.userID
}

// UpdateExtra replaces the caller's extra blob and notifies every linked peer.
func (c *Client) UpdateExtra(extra json.RawMessage) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.users[c.userID]
	if rec == nil {
		return
	}
	rec.extra = extra

	for _, pid := range rec.edges.ids() {
		if peer := e.users[pid]; peer != nil && peer.ch != nil {
			peer.ch.Emit(EventExtraDataUpdated, c.userID, extra)
		}
	}
}

// RemoteExtra returns the extra blob of another registered participant.
func (c *Client) RemoteExtra(remoteID string) (json.RawMessage, error) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if remoteID == "" {
		return nil, ErrUnknownUser
	}
	rec := e.users[remoteID]
	if rec == nil {
		return nil, ErrUnknownUser
	}
	return rec.extra, nil
}

func (c *Client) SetPassword(password string) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec := e.users[c.userID]; rec != nil {
		rec.password = password
	}
}

// CheckPresence reports whether id denotes a registered participant other
// than the caller, along with that participant's extra data.
func (c *Client) CheckPresence(id string) (bool, json.RawMessage) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.users[id]
	if rec == nil {
		return false, nil
	}
	return id != c.userID, rec.extra
}

// DisconnectWith removes the edge pair between the caller and remoteID,
// notifying each side that still held its half.
func (c *Client) DisconnectWith(remoteID string) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec := e.users[c.userID]; rec != nil && rec.edges.has(remoteID) {
		rec.edges.delete(remoteID)
		c.ch.Emit(EventUserDisconnected, remoteID)
	}

	remote := e.users[remoteID]
	if remote == nil {
		return
	}
	if remote.edges.has(c.userID) {
		remote.edges.delete(c.userID)
		if remote.ch != nil {
			remote.ch.Emit(EventUserDisconnected, c.userID)
		}
	}
}

// CloseEntireSession notifies every linked peer that the caller's session is
// over and drops any deferred moderation handoff for the caller.
func (c *Client) CloseEntireSession() error {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.users[c.userID]
	if rec == nil {
		return ErrNotRegistered
	}
	for _, pid := range rec.edges.ids() {
		if ch := rec.edges.get(pid); ch != nil {
			ch.Emit(EventClosedEntireSession, c.userID, rec.extra)
		}
	}
	delete(e.deferred, c.userID)
	return nil
}

// ChangeUserID renames the caller's identifier, moving the full record
// (edges, extra, password) to the new key. When the new identifier is already
// owned by a different live connection the rename degrades to a fresh
// registration under the new identifier.
func (c *Client) ChangeUserID(newID string) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	old := c.userID
	rec := e.users[old]
	if rec != nil && rec.ch == c.ch {
		if newID == old {
			return
		}
		if other := e.users[newID]; other != nil && other.ch != nil && other.ch != c.ch {
			c.userID = newID
			e.registerLocked(newID, c.ch, c.hsExtra, c.hsMaxParticipants)
			return
		}

		e.removeLocked(old)
		e.removeLocked(newID)
		rec.id = newID
		e.users[newID] = rec
		e.order = append(e.order, newID)
		c.userID = newID
		return
	}

	c.userID = newID
	e.registerLocked(newID, c.ch, c.hsExtra, c.hsMaxParticipants)
}

// Disconnect runs the disconnect cascade for the connection. The steps are
// isolated from each other: a fault in one is audited and swallowed so record
// deletion always happens.
func (c *Client) Disconnect() {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	uid := c.userID

	// Replay the deferred moderation message as if freshly received, exactly
	// once.
	e.guard("disconnect.deferred", func() {
		if m, ok := e.deferred[uid]; ok {
			delete(e.deferred, uid)
			e.routeLocked(c.ch, c.msgEvent, m)
		}
	})

	e.guard("disconnect.cascade", func() {
		rec := e.users[uid]
		if rec == nil {
			return
		}

		// First inserted surviving edge wins the moderator handoff.
		var firstPeer Channel
		for _, pid := range rec.edges.ids() {
			pch := rec.edges.get(pid)
			if pch != nil {
				if firstPeer == nil {
					firstPeer = pch
				}
				pch.Emit(EventUserDisconnected, uid)
			}
			if peer := e.users[pid]; peer != nil && peer.edges.has(uid) {
				peer.edges.delete(uid)
				if peer.ch != nil {
					peer.ch.Emit(EventUserDisconnected, uid)
				}
			}
		}

		if rec.shiftModerationOnLeave && firstPeer != nil {
			firstPeer.Emit(EventBecomeNextModerator, c.sessionID)
			e.metrics.Inc(metrics.ModeratorHandoffs)
		}
	})

	e.removeLocked(uid)
	e.metrics.Inc(metrics.UsersRemoved)
}
