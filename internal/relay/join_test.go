package relay

import "testing"

func TestJoinFansOutToRoom(t *testing.T) {
	e := newTestEngine(Config{})

	host := &fakeChannel{}
	clientHost := e.Connect(host, Handshake{UserID: "host", AutoClose: true})
	early := &fakeChannel{}
	e.Connect(early, Handshake{UserID: "early", AutoClose: true})

	link(t, clientHost, "early")
	host.drain()
	early.drain()

	late := &fakeChannel{}
	clientLate := e.Connect(late, Handshake{UserID: "late", AutoClose: true})
	clientLate.HandleMessage(joinMessage("late", "host"), nil)

	// The initiator and every linked member receive the request, each with
	// remoteUserId rewritten to itself.
	got, ok := host.last(DefaultMessageEvent)
	if !ok {
		t.Fatal("initiator missed the join")
	}
	if fwd := got.args[0].(Message); fwd.RemoteUserID != "host" || fwd.Sender != "late" {
		t.Fatalf("initiator copy = %+v", fwd)
	}

	got, ok = early.last(DefaultMessageEvent)
	if !ok {
		t.Fatal("room member missed the join")
	}
	if fwd := got.args[0].(Message); fwd.RemoteUserID != "early" {
		t.Fatalf("member copy = %+v", fwd)
	}

	if late.count(DefaultMessageEvent) != 0 {
		t.Fatal("requester received its own join")
	}
}

func TestJoinOneToManyOnlyReachesInitiator(t *testing.T) {
	e := newTestEngine(Config{})

	host := &fakeChannel{}
	clientHost := e.Connect(host, Handshake{UserID: "host", AutoClose: true})
	member := &fakeChannel{}
	e.Connect(member, Handshake{UserID: "member", AutoClose: true})

	link(t, clientHost, "member")
	member.drain()

	late := &fakeChannel{}
	clientLate := e.Connect(late, Handshake{UserID: "late", AutoClose: true, OneToMany: true})
	clientLate.HandleMessage(joinMessage("late", "host"), nil)

	if host.count(DefaultMessageEvent) == 0 {
		t.Fatal("initiator missed the join")
	}
	if member.count(DefaultMessageEvent) != 0 {
		t.Fatal("star topology leaked the join to a member")
	}
}

func TestJoinRoomFull(t *testing.T) {
	e := newTestEngine(Config{})

	host := &fakeChannel{}
	clientHost := e.Connect(host, Handshake{UserID: "host", AutoClose: true, MaxParticipants: 1})
	member := &fakeChannel{}
	e.Connect(member, Handshake{UserID: "member", AutoClose: true})

	link(t, clientHost, "member")

	late := &fakeChannel{}
	clientLate := e.Connect(late, Handshake{UserID: "late", AutoClose: true})
	clientLate.HandleMessage(joinMessage("late", "host"), nil)

	got, ok := late.last(EventRoomFull)
	if !ok {
		t.Fatal("requester missed room-full")
	}
	if got.args[0].(string) != "host" {
		t.Fatalf("room-full args = %v", got.args)
	}
	if host.count(DefaultMessageEvent) != 0 {
		t.Fatal("rejected join reached the initiator")
	}
}

func TestJoinPasswordFlow(t *testing.T) {
	e := newTestEngine(Config{})

	host := &fakeChannel{}
	clientHost := e.Connect(host, Handshake{UserID: "host", AutoClose: true})
	clientHost.SetPassword("sesame")

	late := &fakeChannel{}
	clientLate := e.Connect(late, Handshake{UserID: "late", AutoClose: true})

	// No password supplied.
	clientLate.HandleMessage(joinMessage("late", "host"), nil)
	if _, ok := late.last(EventJoinWithPassword); !ok {
		t.Fatal("missing join-with-password challenge")
	}

	// Wrong password.
	wrong := joinMessage("late", "host")
	wrong.Password = "guess"
	clientLate.HandleMessage(wrong, nil)
	got, ok := late.last(EventInvalidPassword)
	if !ok {
		t.Fatal("missing invalid-password")
	}
	if got.args[1].(string) != "guess" {
		t.Fatalf("invalid-password args = %v", got.args)
	}

	// Third failure exhausts the budget...
	clientLate.HandleMessage(wrong, nil)
	if late.count(EventInvalidPassword) != 2 {
		t.Fatal("third attempt not counted")
	}

	// ...so the fourth attempt is rejected outright, even with the right
	// password.
	correct := joinMessage("late", "host")
	correct.Password = "sesame"
	clientLate.HandleMessage(correct, nil)
	if _, ok := late.last(EventPasswordMaxTriesOver); !ok {
		t.Fatal("missing password-max-tries-over")
	}
	if host.count(DefaultMessageEvent) != 0 {
		t.Fatal("join leaked past the password gate")
	}
}

func TestJoinCorrectPasswordWithinBudget(t *testing.T) {
	e := newTestEngine(Config{})

	host := &fakeChannel{}
	clientHost := e.Connect(host, Handshake{UserID: "host", AutoClose: true})
	clientHost.SetPassword("sesame")

	late := &fakeChannel{}
	clientLate := e.Connect(late, Handshake{UserID: "late", AutoClose: true})

	m := joinMessage("late", "host")
	m.Password = "sesame"
	clientLate.HandleMessage(m, nil)

	if host.count(DefaultMessageEvent) != 1 {
		t.Fatal("authorized join not fanned out")
	}
}
