package relay

import "testing"

func TestEdgeListOrder(t *testing.T) {
	l := newEdgeList()

	a := &fakeChannel{}
	b := &fakeChannel{}
	l.put("a", a)
	l.put("b", b)
	l.put("c", nil)

	if got := l.ids(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("ids = %v", got)
	}
	if !l.has("c") || l.get("c") != nil {
		t.Fatal("nil-channel edge not kept")
	}

	// Updating keeps the original position.
	l.put("a", b)
	if got := l.ids(); got[0] != "a" {
		t.Fatalf("update moved the edge: %v", got)
	}
	if l.get("a") != b {
		t.Fatal("update did not replace the channel")
	}

	l.delete("b")
	if got := l.ids(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("ids after delete = %v", got)
	}
	l.delete("b") // no-op

	// ids is a snapshot: mutating the list mid-iteration is safe.
	ids := l.ids()
	for _, id := range ids {
		l.delete(id)
	}
	if l.len() != 0 {
		t.Fatalf("len = %d", l.len())
	}
}
