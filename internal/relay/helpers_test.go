package relay

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type emitted struct {
	event string
	args  []any
}

// fakeChannel records everything emitted at it.
type fakeChannel struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeChannel) Emit(event string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: event, args: args})
}

func (f *fakeChannel) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (f *fakeChannel) last(event string) (emitted, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].event == event {
			return f.events[i], true
		}
	}
	return emitted{}, false
}

func (f *fakeChannel) drain() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.events
	f.events = nil
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestEngine(cfg Config) *Engine {
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil)
}

func joinMessage(sender, remote string) Message {
	return Message{Kind: KindJoinRequest, Sender: sender, RemoteUserID: remote}
}

func relayMessage(sender, remote string) Message {
	return Message{Kind: KindRelay, Sender: sender, RemoteUserID: remote}
}
