package relay

// Events emitted by the engine toward client channels.
const (
	EventUserConnected        = "user-connected"
	EventUserDisconnected     = "user-disconnected"
	EventUserNotFound         = "user-not-found"
	EventRoomFull             = "room-full"
	EventJoinWithPassword     = "join-with-password"
	EventInvalidPassword      = "invalid-password"
	EventPasswordMaxTriesOver = "password-max-tries-over"
	EventClosedEntireSession  = "closed-entire-session"
	EventBecomeNextModerator  = "become-next-moderator"
	EventExtraDataUpdated     = "extra-data-updated"
)

// DefaultMessageEvent is the relay payload event name used when a connection's
// handshake does not override it.
const DefaultMessageEvent = "signaling-message"

// SystemUserID is the reserved pseudo-identifier used by legacy clients for
// presence probes carried over the message event.
const SystemUserID = "system"
