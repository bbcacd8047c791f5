package relay

// edgeList is the insertion-ordered adjacency of one participant record. Each
// entry maps a peer identifier to the channel reference captured when the edge
// was inserted. The stored channel may be nil while the peer is a pending
// placeholder.
//
// Insertion order matters: moderator handoff promotes the first inserted
// surviving edge.
type edgeList struct {
	order []string
	byID  map[string]Channel
}

func newEdgeList() *edgeList {
	return &edgeList{byID: make(map[string]Channel)}
}

func (l *edgeList) len() int { return len(l.order) }

func (l *edgeList) has(id string) bool {
	_, ok := l.byID[id]
	return ok
}

// get returns the stored channel for id. The channel may be nil even when the
// edge exists; use has to distinguish.
func (l *edgeList) get(id string) Channel {
	return l.byID[id]
}

// put inserts or updates an edge. An update keeps the original insertion
// position.
func (l *edgeList) put(id string, ch Channel) {
	if _, ok := l.byID[id]; !ok {
		l.order = append(l.order, id)
	}
	l.byID[id] = ch
}

func (l *edgeList) delete(id string) {
	if _, ok := l.byID[id]; !ok {
		return
	}
	delete(l.byID, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// ids returns the peer identifiers in insertion order. The returned slice is
// a copy; callers may mutate the list while iterating it.
func (l *edgeList) ids() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}
