// Package rooms implements the in-memory room registry: ephemeral
// participant sets with per-participant mailboxes for offer/answer/candidate
// exchange. Single-process, no persistence; rooms die with their last
// participant or with the idle sweep.
package rooms

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/snapbooth/snapbooth/pkg/api"
	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
)

// ErrBadInput marks calls with a missing room or participant id.
// "Not found" conditions are expected steady-state and never error.
var ErrBadInput = errors.New("missing room or participant id")

type JoinInfo struct {
	Others []string
	Total  int
	First  bool
}

// Registry is an injectable room store. All mutations of a given room are
// linearized by the registry mutex; no I/O ever happens under it.
type Registry struct {
	conf config.Rooms
	log  *logger.Logger

	mu    sync.Mutex
	rooms map[string]*room

	now func() time.Time
}

func NewRegistry(conf config.Rooms, log *logger.Logger) *Registry {
	return &Registry{
		conf:  conf,
		log:   log.Extend(log.With().Str("m", "rooms")),
		rooms: make(map[string]*room, 10),
		now:   time.Now,
	}
}

// Room keys are case-insensitive by convention.
func key(roomId string) string { return strings.ToLower(roomId) }

// Join adds the participant to the room, creating the room lazily.
// Re-joining is a no-op on the set but still refreshes activity.
// The returned snapshot decides the caller's negotiation role.
func (reg *Registry) Join(roomId, peer string) (JoinInfo, error) {
	if roomId == "" || peer == "" {
		return JoinInfo{}, ErrBadInput
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[key(roomId)]
	if !ok {
		r = newRoom(reg.now())
		reg.rooms[key(roomId)] = r
		roomsGauge.Inc()
		reg.log.Debug().Str("room", roomId).Msg("room created")
	}
	if !r.add(peer) {
		participantsGauge.Inc()
	}
	r.touch(reg.now())
	others := r.others(peer)
	return JoinInfo{Others: others, Total: len(r.members), First: len(others) == 0}, nil
}

// Leave removes the participant and whatever it left undelivered.
// Leaving an absent room or participant is a no-op, not an error.
// An emptied room is removed at once.
func (reg *Registry) Leave(roomId, peer string) error {
	if roomId == "" || peer == "" {
		return ErrBadInput
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[key(roomId)]
	if !ok {
		return nil
	}
	if _, ok := r.members[peer]; ok {
		r.remove(peer)
		participantsGauge.Dec()
	}
	if r.empty() {
		delete(reg.rooms, key(roomId))
		roomsGauge.Dec()
		reg.log.Debug().Str("room", roomId).Msg("room closed")
		return nil
	}
	r.touch(reg.now())
	return nil
}

// RecordOffer stores the participant's pending offer, last write wins.
func (reg *Registry) RecordOffer(roomId, peer string, blob json.RawMessage) error {
	return reg.record(roomId, peer, func(mb *mailbox) { mb.offer = blob })
}

// RecordAnswer stores the participant's pending answer, last write wins.
func (reg *Registry) RecordAnswer(roomId, peer string, blob json.RawMessage) error {
	return reg.record(roomId, peer, func(mb *mailbox) { mb.answer = blob })
}

// AppendCandidate appends to the participant's pending candidate run.
func (reg *Registry) AppendCandidate(roomId, peer string, blob json.RawMessage) error {
	return reg.record(roomId, peer, func(mb *mailbox) { mb.candidates = append(mb.candidates, blob) })
}

func (reg *Registry) record(roomId, peer string, fn func(mb *mailbox)) error {
	if roomId == "" || peer == "" {
		return ErrBadInput
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[key(roomId)]
	if !ok {
		reg.log.Debug().Str("room", roomId).Str("peer", peer).Msg("record into absent room dropped")
		return nil
	}
	mb, ok := r.members[peer]
	if !ok {
		reg.log.Debug().Str("room", roomId).Str("peer", peer).Msg("record by absent participant dropped")
		return nil
	}
	fn(mb)
	r.touch(reg.now())
	return nil
}

// DrainMessagesFor empties every co-member's mailbox towards the given
// participant: pending offer first, then answer, then all candidates, per
// sender in participant insertion order. At-most-once: drained messages are
// gone even if the caller drops the response.
func (reg *Registry) DrainMessagesFor(roomId, peer string) ([]api.Message, error) {
	if roomId == "" || peer == "" {
		return nil, ErrBadInput
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := []api.Message{}
	r, ok := reg.rooms[key(roomId)]
	if !ok {
		return out, nil
	}
	// non-members get nothing; draining is destructive, so a stray id
	// must not eat messages addressed to an actual member
	if _, ok := r.members[peer]; !ok {
		return out, nil
	}
	for _, from := range r.order {
		if from == peer {
			continue
		}
		mb := r.members[from]
		if mb.offer != nil {
			out = append(out, api.Message{T: api.Offer, From: from, Data: mb.offer})
			mb.offer = nil
		}
		if mb.answer != nil {
			out = append(out, api.Message{T: api.Answer, From: from, Data: mb.answer})
			mb.answer = nil
		}
		for _, c := range mb.candidates {
			out = append(out, api.Message{T: api.IceCandidate, From: from, Data: c})
		}
		mb.candidates = nil
	}
	r.touch(reg.now())
	return out, nil
}

// Len returns the current room count.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// ParticipantCount returns the total participant count over all rooms.
func (reg *Registry) ParticipantCount() (n int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range reg.rooms {
		n += len(r.members)
	}
	return
}

// Participants returns the room's participant snapshot, nil when absent.
func (reg *Registry) Participants(roomId string) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[key(roomId)]
	if !ok {
		return nil
	}
	return append([]string(nil), r.order...)
}

// expire deletes every room idle past the threshold, participants or not.
func (reg *Registry) expire() {
	now := reg.now()
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for id, r := range reg.rooms {
		if now.Sub(r.lastActivity) > reg.conf.IdleTimeout {
			participantsGauge.Sub(float64(len(r.members)))
			delete(reg.rooms, id)
			roomsGauge.Dec()
			reg.log.Info().Str("room", id).Msg("idle room swept")
		}
	}
}
