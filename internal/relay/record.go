package relay

import "encoding/json"

// record is one participant's registry entry. All fields are guarded by the
// engine mutex.
//
// A record with a nil channel is a pending placeholder: the identifier has
// been referenced (as a join target or message recipient) before its owner
// connected. Placeholders keep their edges and extra data and are upgraded in
// place when the owner registers.
type record struct {
	id    string
	ch    Channel
	edges *edgeList

	isPublicModerator bool
	extra             json.RawMessage

	maxParticipants int
	password        string

	// shiftModerationOnLeave requests moderator handoff to the first linked
	// peer when this participant disconnects.
	shiftModerationOnLeave bool
}

func (r *record) pending() bool { return r.ch == nil }

// Info is a read-only snapshot of a registry record.
type Info struct {
	UserID        string
	Extra         json.RawMessage
	ConnectedWith []string
	Public        bool
	Pending       bool
}

func (r *record) snapshot() Info {
	return Info{
		UserID:        r.id,
		Extra:         r.extra,
		ConnectedWith: r.edges.ids(),
		Public:        r.isPublicModerator,
		Pending:       r.pending(),
	}
}
