package relay

import (
	"encoding/json"
	"testing"
)

// link connects two registered clients through an ordinary relay payload.
func link(t *testing.T, from *Client, to string) {
	t.Helper()
	from.HandleMessage(relayMessage(from.UserID(), to), nil)
	info, _ := from.e.Lookup(from.UserID())
	for _, id := range info.ConnectedWith {
		if id == to {
			return
		}
	}
	t.Fatalf("%s not linked to %s", from.UserID(), to)
}

func TestUpdateExtraNotifiesPeers(t *testing.T) {
	e := newTestEngine(Config{})

	a := &fakeChannel{}
	clientA := e.Connect(a, Handshake{UserID: "a", AutoClose: true})
	b := &fakeChannel{}
	e.Connect(b, Handshake{UserID: "b", AutoClose: true})
	c := &fakeChannel{}
	e.Connect(c, Handshake{UserID: "c", AutoClose: true})

	link(t, clientA, "b")

	clientA.UpdateExtra(json.RawMessage(`{"mood":"good"}`))

	got, ok := b.last(EventExtraDataUpdated)
	if !ok {
		t.Fatal("linked peer missed extra-data-updated")
	}
	if got.args[0].(string) != "a" {
		t.Fatalf("notification args = %v", got.args)
	}
	if c.count(EventExtraDataUpdated) != 0 {
		t.Fatal("unlinked participant was notified")
	}

	info, _ := e.Lookup("a")
	if string(info.Extra) != `{"mood":"good"}` {
		t.Fatalf("extra = %s", info.Extra)
	}
}

func TestDisconnectWith(t *testing.T) {
	e := newTestEngine(Config{})

	a := &fakeChannel{}
	clientA := e.Connect(a, Handshake{UserID: "a", AutoClose: true})
	b := &fakeChannel{}
	e.Connect(b, Handshake{UserID: "b", AutoClose: true})

	link(t, clientA, "b")
	clientA.DisconnectWith("b")

	if _, ok := a.last(EventUserDisconnected); !ok {
		t.Fatal("caller missed user-disconnected")
	}
	if _, ok := b.last(EventUserDisconnected); !ok {
		t.Fatal("peer missed user-disconnected")
	}

	infoA, _ := e.Lookup("a")
	infoB, _ := e.Lookup("b")
	if len(infoA.ConnectedWith) != 0 || len(infoB.ConnectedWith) != 0 {
		t.Fatalf("edges survived: %v / %v", infoA.ConnectedWith, infoB.ConnectedWith)
	}

	// Severing an absent link is a no-op.
	clientA.DisconnectWith("ghost")
}

func TestCloseEntireSession(t *testing.T) {
	e := newTestEngine(Config{})

	a := &fakeChannel{}
	clientA := e.Connect(a, Handshake{UserID: "a", AutoClose: true, Extra: json.RawMessage(`{"room":"r"}`)})
	b := &fakeChannel{}
	e.Connect(b, Handshake{UserID: "b", AutoClose: true})

	link(t, clientA, "b")

	if err := clientA.CloseEntireSession(); err != nil {
		t.Fatal(err)
	}
	got, ok := b.last(EventClosedEntireSession)
	if !ok {
		t.Fatal("peer missed closed-entire-session")
	}
	if got.args[0].(string) != "a" || string(got.args[1].(json.RawMessage)) != `{"room":"r"}` {
		t.Fatalf("args = %v", got.args)
	}
}

func TestDisconnectCascade(t *testing.T) {
	e := newTestEngine(Config{})

	a := &fakeChannel{}
	clientA := e.Connect(a, Handshake{UserID: "a", AutoClose: true})
	b := &fakeChannel{}
	e.Connect(b, Handshake{UserID: "b", AutoClose: true})
	c := &fakeChannel{}
	e.Connect(c, Handshake{UserID: "c", AutoClose: true})

	link(t, clientA, "b")
	link(t, clientA, "c")

	clientA.Disconnect()

	if b.count(EventUserDisconnected) == 0 || c.count(EventUserDisconnected) == 0 {
		t.Fatal("linked peers missed user-disconnected")
	}
	if _, ok := e.Lookup("a"); ok {
		t.Fatal("record survived disconnect")
	}
	infoB, _ := e.Lookup("b")
	if len(infoB.ConnectedWith) != 0 {
		t.Fatalf("reciprocal edge survived: %v", infoB.ConnectedWith)
	}

	// A second Disconnect is a no-op.
	before := b.count(EventUserDisconnected)
	clientA.Disconnect()
	if b.count(EventUserDisconnected) != before {
		t.Fatal("double disconnect re-ran the cascade")
	}
}

func TestChangeUserIDMovesRecord(t *testing.T) {
	e := newTestEngine(Config{})

	a := &fakeChannel{}
	clientA := e.Connect(a, Handshake{UserID: "a", AutoClose: true, Extra: json.RawMessage(`{"n":1}`)})
	b := &fakeChannel{}
	e.Connect(b, Handshake{UserID: "b", AutoClose: true})

	link(t, clientA, "b")
	clientA.ChangeUserID("a2")

	if clientA.UserID() != "a2" {
		t.Fatalf("userID = %q", clientA.UserID())
	}
	if _, ok := e.Lookup("a"); ok {
		t.Fatal("old identifier still registered")
	}
	info, ok := e.Lookup("a2")
	if !ok {
		t.Fatal("new identifier not registered")
	}
	if string(info.Extra) != `{"n":1}` || len(info.ConnectedWith) != 1 {
		t.Fatalf("record not moved: %+v", info)
	}
}

func TestChangeUserIDCollisionRegistersFresh(t *testing.T) {
	e := newTestEngine(Config{})

	a := &fakeChannel{}
	clientA := e.Connect(a, Handshake{UserID: "a", AutoClose: true})
	b := &fakeChannel{}
	e.Connect(b, Handshake{UserID: "b", AutoClose: true})

	clientA.ChangeUserID("b")

	if clientA.UserID() != "b" {
		t.Fatalf("userID = %q", clientA.UserID())
	}
	// The collision replaced b's record with a fresh registration owned by
	// a's channel; a's old record is untouched.
	if _, ok := e.Lookup("a"); !ok {
		t.Fatal("original record removed on collision")
	}
}
