package rooms

import (
	"time"

	"github.com/goccy/go-json"
)

// room holds one rendezvous point: its participants in insertion order and
// a per-participant mailbox of undelivered signaling messages.
type room struct {
	order        []string
	members      map[string]*mailbox
	lastActivity time.Time
}

// mailbox keeps at most one pending offer, at most one pending answer and
// an append-only run of ICE candidates until the addressed peer drains them.
type mailbox struct {
	offer      json.RawMessage
	answer     json.RawMessage
	candidates []json.RawMessage
}

func newRoom(now time.Time) *room {
	return &room{members: make(map[string]*mailbox, 2), lastActivity: now}
}

func (r *room) add(peer string) (existed bool) {
	if _, ok := r.members[peer]; ok {
		return true
	}
	r.members[peer] = &mailbox{}
	r.order = append(r.order, peer)
	return false
}

func (r *room) remove(peer string) {
	if _, ok := r.members[peer]; !ok {
		return
	}
	delete(r.members, peer)
	for i, p := range r.order {
		if p == peer {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// others returns a snapshot of the participant set without the given peer,
// in insertion order.
func (r *room) others(peer string) []string {
	out := make([]string, 0, len(r.order))
	for _, p := range r.order {
		if p != peer {
			out = append(out, p)
		}
	}
	return out
}

func (r *room) empty() bool { return len(r.members) == 0 }

func (r *room) touch(now time.Time) { r.lastActivity = now }
