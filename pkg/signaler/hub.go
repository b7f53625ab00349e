package signaler

import (
	"net/http"
	"strings"

	"github.com/snapbooth/snapbooth/pkg/api"
	"github.com/snapbooth/snapbooth/pkg/com"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/rooms"
)

// Hub is the push transport: it holds one long-lived connection per
// participant and forwards signaling frames immediately instead of parking
// them in mailboxes. Room membership semantics are shared with the poll
// path through the same registry.
type Hub struct {
	rooms     *rooms.Registry
	connector *com.Connector
	users     com.Map[com.Uid, *User]
	log       *logger.Logger
}

func NewHub(reg *rooms.Registry, log *logger.Logger) *Hub {
	return &Hub{
		rooms:     reg,
		connector: com.NewConnector(com.WithOrigin("*")),
		users:     com.NewMap[com.Uid, *User](),
		log:       log.Extend(log.With().Str("m", "hub")),
	}
}

func (h *Hub) Connections() int { return h.users.Len() }

// handleConnection upgrades one push client and pumps its frames until
// disconnect. Any exit, clean or abrupt, runs the leave path.
func (h *Hub) handleConnection(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			h.log.Error().Msgf("recovered user connection panic: %v", err)
		}
	}()

	client, err := h.connector.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("socket upgrade failed")
		return
	}
	usr := NewUser(client)
	h.users.Put(usr.Id(), usr)
	connectionsGauge.Inc()
	usr.OnPacket(func(in api.In) { h.route(usr, in) })

	done := usr.Listen()
	_ = usr.Send(api.Connected, usr.Id().String(), nil)

	<-done
	h.disconnect(usr)
}

func (h *Hub) disconnect(usr *User) {
	h.users.RemoveByKey(usr.Id())
	connectionsGauge.Dec()
	room, peer := usr.membership()
	if room == "" {
		return
	}
	usr.clear()
	_ = h.rooms.Leave(room, peer)
	h.broadcast(room, peer, api.Out{T: api.UserLeft, User: peer})
	h.log.Debug().Str("room", room).Str("peer", peer).Msg("push user left")
}

func (h *Hub) route(usr *User, in api.In) {
	switch in.T {
	case api.JoinRoom:
		h.handleJoin(usr, in)
	case api.Offer, api.Answer:
		if api.Unwrap[api.SessionDescription](in.Payload) == nil {
			h.protocolError(usr, "malformed session description")
			return
		}
		h.forward(usr, in)
	case api.IceCandidate:
		if api.Unwrap[api.Candidate](in.Payload) == nil {
			h.protocolError(usr, "malformed candidate")
			return
		}
		h.forward(usr, in)
	case api.PositionUpdate:
		if api.Unwrap[api.Position](in.Payload) == nil {
			h.protocolError(usr, "malformed position")
			return
		}
		h.forward(usr, in)
	case api.Leave:
		h.disconnectRoomOnly(usr)
	case api.Ping:
		_ = usr.Send(api.Pong, "", nil)
	default:
		h.protocolError(usr, "unknown message type")
	}
}

func (h *Hub) handleJoin(usr *User, in api.In) {
	peer := in.User
	if peer == "" {
		peer = usr.Id().String()
	}
	if in.Room == "" {
		h.protocolError(usr, "missing roomId")
		return
	}
	// room keys are case-insensitive, the stored membership must match
	// the registry key or broadcasts miss co-members
	room := strings.ToLower(in.Room)

	// switching rooms on a live connection leaves the old one first
	if prev, _ := usr.membership(); prev != "" && prev != room {
		h.disconnectRoomOnly(usr)
	}

	info, err := h.rooms.Join(room, peer)
	if err != nil {
		h.protocolError(usr, err.Error())
		return
	}
	usr.join(room, peer)

	// the joiner learns the present company the same way the company
	// learns about the joiner
	for _, other := range info.Others {
		_ = usr.Send(api.UserJoined, other, nil)
	}
	h.broadcast(room, peer, api.Out{T: api.UserJoined, User: peer})
	h.log.Debug().Str("room", room).Str("peer", peer).Bool("first", info.First).Msg("push user joined")
}

// forward relays the frame to every co-member right away.
func (h *Hub) forward(usr *User, in api.In) {
	room, peer := usr.membership()
	if room == "" {
		h.protocolError(usr, "not in a room")
		return
	}
	h.broadcast(room, peer, api.Out{T: in.T, User: peer, Payload: in.Payload})
	relayedFrames.Inc()
}

func (h *Hub) disconnectRoomOnly(usr *User) {
	room, peer := usr.membership()
	if room == "" {
		return
	}
	usr.clear()
	_ = h.rooms.Leave(room, peer)
	h.broadcast(room, peer, api.Out{T: api.UserLeft, User: peer})
}

// broadcast sends the frame to every connected member of the room
// except the sender.
func (h *Hub) broadcast(room, sender string, out api.Out) {
	h.users.ForEach(func(u *User) {
		r, p := u.membership()
		if r == room && p != sender {
			_ = u.Send(out.T, out.User, out.Payload)
		}
	})
}

func (h *Hub) protocolError(usr *User, message string) {
	h.log.Debug().Str("err", message).Msg("push protocol error")
	_ = usr.Send(api.Error, "", api.ErrorReply{Error: message})
}
