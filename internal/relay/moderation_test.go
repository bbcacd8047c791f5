package relay

import (
	"encoding/json"
	"testing"
)

func TestModerationShiftRoutesImmediately(t *testing.T) {
	e := newTestEngine(Config{})

	a := &fakeChannel{}
	clientA := e.Connect(a, Handshake{UserID: "a", AutoClose: true})
	b := &fakeChannel{}
	e.Connect(b, Handshake{UserID: "b", AutoClose: true})

	link(t, clientA, "b")
	b.drain()

	m := Message{Kind: KindModerationShift, Sender: "a", RemoteUserID: "b",
		Payload: json.RawMessage(`{"shiftedModerationControl":true}`)}
	clientA.HandleMessage(m, nil)

	if got := b.count(DefaultMessageEvent); got != 1 {
		t.Fatalf("moderation shift delivered %d times, want 1", got)
	}
}

func TestModerationShiftDeferredUntilDisconnect(t *testing.T) {
	e := newTestEngine(Config{})

	a := &fakeChannel{}
	clientA := e.Connect(a, Handshake{UserID: "a", AutoClose: true})
	b := &fakeChannel{}
	e.Connect(b, Handshake{UserID: "b", AutoClose: true})

	link(t, clientA, "b")
	b.drain()

	m := Message{Kind: KindModerationShift, Sender: "a", RemoteUserID: "b", FiredOnLeave: true,
		Payload: json.RawMessage(`{"shiftedModerationControl":true,"firedOnLeave":true}`)}
	clientA.HandleMessage(m, nil)

	// Captured, not delivered.
	if got := b.count(DefaultMessageEvent); got != 0 {
		t.Fatalf("deferred shift delivered early %d times", got)
	}

	clientA.Disconnect()
	if got := b.count(DefaultMessageEvent); got != 1 {
		t.Fatalf("deferred shift replayed %d times, want 1", got)
	}

	// A later reconnect+disconnect of the same identifier must not replay it
	// again.
	a2 := &fakeChannel{}
	clientA2 := e.Connect(a2, Handshake{UserID: "a", AutoClose: true})
	link(t, clientA2, "b")
	b.drain()
	clientA2.Disconnect()
	if got := b.count(DefaultMessageEvent); got != 0 {
		t.Fatal("deferred shift replayed twice")
	}
}

func TestModeratorHandoffToFirstLinkedPeer(t *testing.T) {
	e := newTestEngine(Config{})

	host := &fakeChannel{}
	// autoCloseEntireSession=false and sole occupant: the session should
	// outlive its opener.
	clientHost := e.Connect(host, Handshake{UserID: "host", SessionID: "room-1", AutoClose: false})

	first := &fakeChannel{}
	e.Connect(first, Handshake{UserID: "first", AutoClose: true})
	second := &fakeChannel{}
	e.Connect(second, Handshake{UserID: "second", AutoClose: true})

	link(t, clientHost, "first")
	link(t, clientHost, "second")

	clientHost.Disconnect()

	got, ok := first.last(EventBecomeNextModerator)
	if !ok {
		t.Fatal("first linked peer missed become-next-moderator")
	}
	if got.args[0].(string) != "room-1" {
		t.Fatalf("handoff args = %v", got.args)
	}
	if second.count(EventBecomeNextModerator) != 0 {
		t.Fatal("handoff went to more than one peer")
	}
}

func TestNoHandoffWhenAutoClose(t *testing.T) {
	e := newTestEngine(Config{})

	host := &fakeChannel{}
	clientHost := e.Connect(host, Handshake{UserID: "host", SessionID: "room-1", AutoClose: true})
	peer := &fakeChannel{}
	e.Connect(peer, Handshake{UserID: "peer", AutoClose: true})

	link(t, clientHost, "peer")
	clientHost.Disconnect()

	if peer.count(EventBecomeNextModerator) != 0 {
		t.Fatal("handoff fired for an auto-closing session")
	}
}

func TestNoSoleOccupantFlagWhenOthersPresent(t *testing.T) {
	e := newTestEngine(Config{})

	other := &fakeChannel{}
	e.Connect(other, Handshake{UserID: "other", AutoClose: true})

	host := &fakeChannel{}
	clientHost := e.Connect(host, Handshake{UserID: "host", SessionID: "room-1", AutoClose: false})
	link(t, clientHost, "other")

	clientHost.Disconnect()
	if other.count(EventBecomeNextModerator) != 0 {
		t.Fatal("handoff fired although the opener was not the sole occupant")
	}
}

func TestShiftModerationOnDisconnectFlag(t *testing.T) {
	e := newTestEngine(Config{})

	host := &fakeChannel{}
	clientHost := e.Connect(host, Handshake{UserID: "host", SessionID: "room-1", AutoClose: true})
	peer := &fakeChannel{}
	e.Connect(peer, Handshake{UserID: "peer", AutoClose: true})

	link(t, clientHost, "peer")
	clientHost.ShiftModerationOnDisconnect()
	clientHost.Disconnect()

	if peer.count(EventBecomeNextModerator) != 1 {
		t.Fatal("explicit shift flag did not trigger handoff")
	}
}
