package signaler

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/snapbooth/snapbooth/pkg/api"
	"github.com/snapbooth/snapbooth/pkg/turn"
)

// handleSignaling is the poll transport: one POST endpoint dispatching on
// the message type tag. All state lives in the room registry.
func (s *Signaler) handleSignaling(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.replyError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var rq api.Request
	if err := json.NewDecoder(r.Body).Decode(&rq); err != nil {
		s.replyError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !rq.Valid() {
		s.replyError(w, http.StatusBadRequest, "missing roomId or peerId")
		return
	}

	switch rq.T {
	case api.Join:
		info, err := s.rooms.Join(rq.Room, rq.Peer)
		if err != nil {
			s.replyError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.reply(w, api.JoinReply{Success: true, Others: info.Others, Total: info.Total, First: info.First})
	case api.Offer:
		if api.Unwrap[api.SessionDescription](rq.Payload) == nil {
			s.replyError(w, http.StatusBadRequest, "malformed offer payload")
			return
		}
		_ = s.rooms.RecordOffer(rq.Room, rq.Peer, rq.Payload)
		s.reply(w, api.Ack{Success: true})
	case api.Answer:
		if api.Unwrap[api.SessionDescription](rq.Payload) == nil {
			s.replyError(w, http.StatusBadRequest, "malformed answer payload")
			return
		}
		_ = s.rooms.RecordAnswer(rq.Room, rq.Peer, rq.Payload)
		s.reply(w, api.Ack{Success: true})
	case api.IceCandidate:
		if api.Unwrap[api.Candidate](rq.Payload) == nil {
			s.replyError(w, http.StatusBadRequest, "malformed candidate payload")
			return
		}
		_ = s.rooms.AppendCandidate(rq.Room, rq.Peer, rq.Payload)
		s.reply(w, api.Ack{Success: true})
	case api.GetMessages:
		messages, err := s.rooms.DrainMessagesFor(rq.Room, rq.Peer)
		if err != nil {
			s.replyError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.reply(w, api.Messages{Messages: messages})
	case api.Leave:
		_ = s.rooms.Leave(rq.Room, rq.Peer)
		s.reply(w, api.Ack{Success: true})
	default:
		s.log.Debug().Str("type", string(rq.T)).Msg("unknown signaling type")
		s.replyError(w, http.StatusBadRequest, "unknown message type")
	}
}

// handleTurnCredentials mints fresh relay credentials on every call.
func (s *Signaler) handleTurnCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.turn.Issue()
	if err != nil {
		status := http.StatusInternalServerError
		if !errors.Is(err, turn.ErrNotConfigured) {
			s.log.Error().Err(err).Msg("credential issue failed")
		}
		s.replyError(w, status, err.Error())
		return
	}
	s.reply(w, creds)
}

func (s *Signaler) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.reply(w, api.Health{
		Rooms:        s.rooms.Len(),
		Participants: s.rooms.ParticipantCount(),
		Connections:  s.hub.Connections(),
	})
}

func (s *Signaler) reply(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("response write failed")
	}
}

func (s *Signaler) replyError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorReply{Error: message})
}
