package relay

import "encoding/json"

// Kind discriminates the closed set of signaling message kinds handled by the
// engine. The wire payload stays opaque; classification happens once, at
// decode time, instead of sniffing optional fields throughout the engine.
type Kind uint8

const (
	// KindRelay is an ordinary signaling payload delivered over an edge.
	KindRelay Kind = iota
	// KindJoinRequest asks to join the room owned by RemoteUserID.
	KindJoinRequest
	// KindModerationShift carries moderator handoff control. When FiredOnLeave
	// is set it is captured and replayed on the sender's disconnect.
	KindModerationShift
	// KindSystemPresence is the legacy presence probe addressed to the
	// reserved "system" identifier.
	KindSystemPresence
)

// Message is one signaling payload moving through the engine.
//
// Payload is the client-supplied message body and is never interpreted beyond
// the marker fields read during classification. Extra is attached by the
// router at delivery time.
type Message struct {
	Kind Kind

	Sender       string
	RemoteUserID string
	Password     string

	// UserLeft suppresses the router's lazy edge insertion.
	UserLeft bool
	// FiredOnLeave marks a moderation shift to be deferred until disconnect.
	FiredOnLeave bool
	// PresenceUserID is the probed identifier of a KindSystemPresence message.
	PresenceUserID string

	Payload json.RawMessage
	Extra   json.RawMessage
}

type wireMessage struct {
	Sender       string          `json:"sender"`
	RemoteUserID string          `json:"remoteUserId,omitempty"`
	Password     string          `json:"password,omitempty"`
	Message      json.RawMessage `json:"message,omitempty"`
	Extra        json.RawMessage `json:"extra,omitempty"`
}

// payloadMarkers are the well-known fields clients set inside the otherwise
// opaque message body.
type payloadMarkers struct {
	NewParticipationRequest  bool   `json:"newParticipationRequest"`
	ShiftedModerationControl bool   `json:"shiftedModerationControl"`
	FiredOnLeave             bool   `json:"firedOnLeave"`
	UserLeft                 bool   `json:"userLeft"`
	DetectPresence           bool   `json:"detectPresence"`
	UserID                   string `json:"userid"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	// Marker fields are best-effort: a malformed body classifies as a plain
	// relay payload rather than failing the whole message.
	var markers payloadMarkers
	if len(w.Message) > 0 {
		_ = json.Unmarshal(w.Message, &markers)
	}

	*m = Message{
		Sender:       w.Sender,
		RemoteUserID: w.RemoteUserID,
		Password:     w.Password,
		UserLeft:     markers.UserLeft,
		FiredOnLeave: markers.FiredOnLeave,
		Payload:      w.Message,
		Extra:        w.Extra,
	}

	switch {
	case w.RemoteUserID == SystemUserID && markers.DetectPresence:
		m.Kind = KindSystemPresence
		m.PresenceUserID = markers.UserID
	case markers.NewParticipationRequest && w.RemoteUserID != "" && w.RemoteUserID != SystemUserID:
		m.Kind = KindJoinRequest
	case markers.ShiftedModerationControl:
		m.Kind = KindModerationShift
	default:
		m.Kind = KindRelay
	}
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		Sender:       m.Sender,
		RemoteUserID: m.RemoteUserID,
		Password:     m.Password,
		Message:      m.Payload,
		Extra:        m.Extra,
	})
}
