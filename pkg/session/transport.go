package session

import (
	"context"

	"github.com/snapbooth/snapbooth/pkg/api"
)

// Transport is the signaling path of a session: the poll HTTP client in
// production, an in-memory double in tests.
type Transport interface {
	Join(ctx context.Context, room, peer string) (api.JoinReply, error)
	SendOffer(ctx context.Context, room, peer string, sdp api.SessionDescription) error
	SendAnswer(ctx context.Context, room, peer string, sdp api.SessionDescription) error
	SendCandidate(ctx context.Context, room, peer string, candidate api.Candidate) error
	Messages(ctx context.Context, room, peer string) ([]api.Message, error)
	Leave(ctx context.Context, room, peer string) error
}
