package manager

import "slotd/pkg/types"

// RotationQueue is a FIFO of profiles waiting for a slot. It is not safe for
// concurrent use; the registry guards it.
type RotationQueue struct {
	items []types.Profile
}

func newRotationQueue(ps []types.Profile) *RotationQueue {
	return &RotationQueue{items: append([]types.Profile(nil), ps...)}
}

// Push appends p at the tail.
func (q *RotationQueue) Push(p types.Profile) { q.items = append(q.items, p) }

// Pop removes and returns the head.
func (q *RotationQueue) Pop() (types.Profile, bool) {
	if len(q.items) == 0 {
		return types.Profile{}, false
	}
	p := q.items[0]
	q.items[0] = types.Profile{}
	q.items = q.items[1:]
	return p, true
}

func (q *RotationQueue) Len() int { return len(q.items) }

// Names lists queued profile names head first.
func (q *RotationQueue) Names() []string {
	out := make([]string, len(q.items))
	for i, p := range q.items {
		out[i] = p.Name
	}
	return out
}

func (q *RotationQueue) Clear() { q.items = nil }
