package relay

import (
	"encoding/json"
	"strings"
)

// Moderator is one entry of the public moderator directory.
type Moderator struct {
	UserID string          `json:"userid"`
	Extra  json.RawMessage `json:"extra"`
}

// BecomePublicModerator marks the caller as discoverable.
func (c *Client) BecomePublicModerator() {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec := e.users[c.userID]; rec != nil {
		rec.isPublicModerator = true
	}
}

// DontMakeMeModerator removes the caller from the public directory.
func (c *Client) DontMakeMeModerator() {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec := e.users[c.userID]; rec != nil {
		rec.isPublicModerator = false
	}
}

// PublicModerators returns every public moderator whose identifier starts
// with prefix, excluding the caller, in registry insertion order. An empty
// prefix matches everyone.
func (c *Client) PublicModerators(prefix string) []Moderator {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	mods := []Moderator{}
	for _, id := range e.order {
		rec := e.users[id]
		if rec == nil || !rec.isPublicModerator || id == c.userID {
			continue
		}
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		mods = append(mods, Moderator{UserID: id, Extra: rec.extra})
	}
	return mods
}

// ShiftModerationOnDisconnect flags the caller for moderator handoff when it
// disconnects.
func (c *Client) ShiftModerationOnDisconnect() {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec := e.users[c.userID]; rec != nil {
		rec.shiftModerationOnLeave = true
	}
}
