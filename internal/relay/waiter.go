package relay

import (
	"time"

	"github.com/peerline/signaling-relay/internal/metrics"
)

// presenceWait polls for an absent join target to register with a live
// channel, then performs the room fan-out. Each poll re-enters the engine
// lock for one step, so other events keep flowing between polls.
//
// The wait abandons itself when the requester's record disappears from the
// registry, and emits user-not-found exactly once when the attempt budget is
// exhausted.
func (e *Engine) presenceWait(c *Client, m Message) {
	ticker := time.NewTicker(e.cfg.PresencePollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		e.mu.Lock()

		if c.closed || e.users[c.userID] == nil {
			e.mu.Unlock()
			return
		}
		if attempt > e.cfg.PresencePollAttempts {
			c.ch.Emit(EventUserNotFound, m.RemoteUserID)
			e.metrics.Inc(metrics.UserNotFound)
			e.mu.Unlock()
			return
		}
		if initiator := e.users[m.RemoteUserID]; initiator != nil && initiator.ch != nil {
			e.joinRoomLocked(c, m)
			e.mu.Unlock()
			return
		}

		e.mu.Unlock()
		<-ticker.C
	}
}
