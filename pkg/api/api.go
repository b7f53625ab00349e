// Package api defines the wire protocol shared by the poll and push
// signaling transports.
//
// Every message is a JSON-encoded packet tagged with a type field on which
// receivers dispatch. Payloads are kept as raw JSON until the tag is known,
// then unwrapped into the distinct per-type structures below (2-pass
// unmarshal), so a malformed payload is rejected at the edge instead of
// being spread field-by-field onto outgoing messages.
package api

import (
	"errors"

	"github.com/goccy/go-json"
)

// MT is a message type tag.
type MT string

// Poll transport request tags.
const (
	Join         MT = "join"
	Offer        MT = "offer"
	Answer       MT = "answer"
	IceCandidate MT = "ice-candidate"
	GetMessages  MT = "get-messages"
	Leave        MT = "leave"
)

// Push transport tags, a superset of the poll ones.
const (
	JoinRoom       MT = "join-room"
	PositionUpdate MT = "position-update"
	Ping           MT = "ping"

	Connected  MT = "connected"
	UserJoined MT = "user-joined"
	UserLeft   MT = "user-left"
	Pong       MT = "pong"
	Error      MT = "error"
)

var (
	ErrMalformed   = errors.New("malformed")
	ErrUnknownType = errors.New("unknown type")
)

// Request is a poll transport request.
type Request struct {
	T       MT              `json:"type"`
	Room    string          `json:"roomId"`
	Peer    string          `json:"peerId"`
	Payload json.RawMessage `json:"data,omitempty"`
}

// In is an inbound push transport frame.
type In struct {
	T       MT              `json:"type"`
	Room    string          `json:"roomId,omitempty"`
	User    string          `json:"userId,omitempty"`
	Payload json.RawMessage `json:"data,omitempty"`
}

// Out is an outbound push transport frame.
type Out struct {
	T       MT     `json:"type"`
	User    string `json:"userId,omitempty"`
	Payload any    `json:"data,omitempty"`
}

// SessionDescription carries an offer or an answer blob.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate carries one ICE connectivity candidate.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Position is the booth application-level drag/resize event, forwarded
// verbatim by the push relay.
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale,omitempty"`
}

// Message is one drained mailbox entry.
type Message struct {
	T    MT              `json:"type"`
	From string          `json:"from"`
	Data json.RawMessage `json:"data,omitempty"`
}

type (
	JoinReply struct {
		Success bool     `json:"success"`
		Others  []string `json:"participants"`
		Total   int      `json:"totalParticipants"`
		First   bool     `json:"isFirstParticipant"`
	}
	Ack struct {
		Success bool `json:"success"`
	}
	Messages struct {
		Messages []Message `json:"messages"`
	}
	ErrorReply struct {
		Error string `json:"error"`
	}
	Health struct {
		Rooms        int `json:"rooms"`
		Participants int `json:"participants"`
		Connections  int `json:"connections"`
	}
)

// Unwrap decodes a raw payload into T, nil on any decode error.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// Valid reports whether the request carries the fields every
// operation requires.
func (r *Request) Valid() bool { return r.Room != "" && r.Peer != "" }

// NeedsPayload reports whether the tag must carry a payload.
func (t MT) NeedsPayload() bool {
	return t == Offer || t == Answer || t == IceCandidate || t == PositionUpdate
}
