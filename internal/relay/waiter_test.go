package relay

import (
	"testing"
	"time"
)

func fastWaitConfig() Config {
	return Config{
		PresencePollInterval: time.Millisecond,
		PresencePollAttempts: 20,
	}
}

func TestPresenceWaitCompletesWhenInitiatorArrives(t *testing.T) {
	e := newTestEngine(fastWaitConfig())

	late := &fakeChannel{}
	clientLate := e.Connect(late, Handshake{UserID: "late", AutoClose: true})
	clientLate.HandleMessage(joinMessage("late", "host"), nil)

	// The join is parked; nothing delivered yet.
	if late.count(EventUserNotFound) != 0 {
		t.Fatal("join reported user-not-found before the budget ran out")
	}

	host := &fakeChannel{}
	e.Connect(host, Handshake{UserID: "host", AutoClose: true})

	waitFor(t, time.Second, func() bool {
		return host.count(DefaultMessageEvent) == 1
	})
	got, _ := host.last(DefaultMessageEvent)
	if fwd := got.args[0].(Message); fwd.Sender != "late" || fwd.RemoteUserID != "host" {
		t.Fatalf("parked join = %+v", fwd)
	}
}

func TestPresenceWaitExhaustsBudgetOnce(t *testing.T) {
	e := newTestEngine(fastWaitConfig())

	late := &fakeChannel{}
	clientLate := e.Connect(late, Handshake{UserID: "late", AutoClose: true})
	clientLate.HandleMessage(joinMessage("late", "ghost"), nil)

	waitFor(t, time.Second, func() bool {
		return late.count(EventUserNotFound) == 1
	})

	// Give the poller time to misbehave.
	time.Sleep(20 * time.Millisecond)
	if got := late.count(EventUserNotFound); got != 1 {
		t.Fatalf("user-not-found emitted %d times, want 1", got)
	}
}

func TestPresenceWaitAbandonedOnRequesterDisconnect(t *testing.T) {
	e := newTestEngine(fastWaitConfig())

	late := &fakeChannel{}
	clientLate := e.Connect(late, Handshake{UserID: "late", AutoClose: true})
	clientLate.HandleMessage(joinMessage("late", "host"), nil)

	clientLate.Disconnect()

	// The initiator arriving after the requester left must not trigger a
	// fan-out or a user-not-found.
	host := &fakeChannel{}
	e.Connect(host, Handshake{UserID: "host", AutoClose: true})

	time.Sleep(50 * time.Millisecond)
	if host.count(DefaultMessageEvent) != 0 {
		t.Fatal("abandoned join was still fanned out")
	}
	if late.count(EventUserNotFound) != 0 {
		t.Fatal("abandoned join reported user-not-found")
	}
}
