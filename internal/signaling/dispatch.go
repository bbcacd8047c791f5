package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/peerline/signaling-relay/internal/metrics"
	"github.com/peerline/signaling-relay/internal/relay"
)

// Control-plane events understood by every connection in addition to its
// configurable message event.
const (
	eventExtraDataUpdated     = "extra-data-updated"
	eventGetRemoteUserExtra   = "get-remote-user-extra-data"
	eventBecomePublicMod      = "become-a-public-moderator"
	eventDontMakeMeModerator  = "dont-make-me-moderator"
	eventGetPublicModerators  = "get-public-moderators"
	eventChangedUUID          = "changed-uuid"
	eventSetPassword          = "set-password"
	eventDisconnectWith       = "disconnect-with"
	eventCloseEntireSession   = "close-entire-session"
	eventCheckPresence        = "check-presence"
	eventShiftModOnDisconnect = "shift-moderator-control-on-disconnect"
	eventSetCustomListener    = "set-custom-socket-event-listener"
)

var emptyObject = json.RawMessage("{}")

// dispatch routes one inbound envelope. Panics are contained per envelope so
// a malformed frame cannot tear down the connection, let alone the server.
func (s *Server) dispatch(client *relay.Client, c *conn, env envelope, msgEvent string, custom map[string]struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			s.metrics.Inc(metrics.HandlerFaults)
			s.audit.Push("dispatch."+env.Event, rec, "userid", client.UserID())
			s.log.Error("recovered dispatch fault", "event", env.Event, "recover", rec)
		}
	}()

	var ack relay.AckFunc
	if env.AckID != nil {
		id := *env.AckID
		ack = func(args ...any) { c.ack(id, args...) }
	}

	switch env.Event {
	case eventExtraDataUpdated:
		if extra, ok := env.argRaw(0); ok {
			client.UpdateExtra(extra)
		}

	case eventGetRemoteUserExtra:
		if ack == nil {
			return
		}
		id, _ := env.argString(0)
		extra, err := client.RemoteExtra(id)
		if err != nil {
			ack(fmt.Sprintf("remoteUserId (%s) does NOT exist.", id))
			return
		}
		if len(extra) == 0 {
			extra = emptyObject
		}
		ack(extra)

	case eventBecomePublicMod:
		client.BecomePublicModerator()

	case eventDontMakeMeModerator:
		client.DontMakeMeModerator()

	case eventGetPublicModerators:
		if ack == nil {
			return
		}
		prefix, _ := env.argString(0)
		ack(client.PublicModerators(prefix))

	case eventChangedUUID:
		if id, ok := env.argString(0); ok && id != "" {
			client.ChangeUserID(id)
		}
		if ack != nil {
			ack()
		}

	case eventSetPassword:
		if pw, ok := env.argString(0); ok {
			client.SetPassword(pw)
		}

	case eventDisconnectWith:
		if id, ok := env.argString(0); ok {
			client.DisconnectWith(id)
		}
		if ack != nil {
			ack()
		}

	case eventCloseEntireSession:
		// Not being registered is not an error the client can act on.
		_ = client.CloseEntireSession()
		if ack != nil {
			ack()
		}

	case eventCheckPresence:
		if ack == nil {
			return
		}
		id, _ := env.argString(0)
		present, extra := client.CheckPresence(id)
		if len(extra) == 0 {
			extra = emptyObject
		}
		ack(present, id, extra)

	case eventShiftModOnDisconnect:
		client.ShiftModerationOnDisconnect()

	case eventSetCustomListener:
		if name, ok := env.argString(0); ok && name != "" {
			custom[name] = struct{}{}
		}

	case msgEvent:
		raw, ok := env.argRaw(0)
		if !ok {
			s.metrics.Inc(metrics.DropBadEnvelope)
			return
		}
		var m relay.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			s.metrics.Inc(metrics.DropBadEnvelope)
			s.log.Debug("drop bad relay payload", "userid", client.UserID(), "err", err)
			return
		}
		client.HandleMessage(m, ack)

	default:
		// Registered custom events are rebroadcast to every other live
		// channel; anything else is dropped.
		if _, ok := custom[env.Event]; ok {
			payload, _ := env.argRaw(0)
			s.engine.BroadcastCustom(c, env.Event, payload)
		}
	}
}
