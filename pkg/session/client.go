package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/snapbooth/snapbooth/pkg/api"
)

// ErrTimeout distinguishes an expired request from other transport
// failures; negotiation retries on it, callers surface it after that.
var ErrTimeout = errors.New("signaling request timed out")

// Client is the poll-transport HTTP client of the signaling server.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{base: base, http: &http.Client{}, timeout: timeout}
}

func (c *Client) Join(ctx context.Context, room, peer string) (api.JoinReply, error) {
	var reply api.JoinReply
	err := c.call(ctx, api.Request{T: api.Join, Room: room, Peer: peer}, &reply)
	return reply, err
}

func (c *Client) SendOffer(ctx context.Context, room, peer string, sdp api.SessionDescription) error {
	return c.send(ctx, api.Offer, room, peer, sdp)
}

func (c *Client) SendAnswer(ctx context.Context, room, peer string, sdp api.SessionDescription) error {
	return c.send(ctx, api.Answer, room, peer, sdp)
}

func (c *Client) SendCandidate(ctx context.Context, room, peer string, candidate api.Candidate) error {
	return c.send(ctx, api.IceCandidate, room, peer, candidate)
}

func (c *Client) Messages(ctx context.Context, room, peer string) ([]api.Message, error) {
	var reply api.Messages
	if err := c.call(ctx, api.Request{T: api.GetMessages, Room: room, Peer: peer}, &reply); err != nil {
		return nil, err
	}
	return reply.Messages, nil
}

func (c *Client) Leave(ctx context.Context, room, peer string) error {
	var reply api.Ack
	return c.call(ctx, api.Request{T: api.Leave, Room: room, Peer: peer}, &reply)
}

// TurnCredentials fetches fresh relay credentials, raw.
func (c *Client) TurnCredentials(ctx context.Context, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/turn-credentials", nil)
	if err != nil {
		return err
	}
	return c.do(rq, out)
}

func (c *Client) send(ctx context.Context, t api.MT, room, peer string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var reply api.Ack
	return c.call(ctx, api.Request{T: t, Room: room, Peer: peer, Payload: data}, &reply)
}

func (c *Client) call(ctx context.Context, request api.Request, out any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/signaling", bytes.NewReader(body))
	if err != nil {
		return err
	}
	rq.Header.Set("Content-Type", "application/json")
	return c.do(rq, out)
}

func (c *Client) do(rq *http.Request, out any) error {
	resp, err := c.http.Do(rq)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var fail api.ErrorReply
		if err := json.NewDecoder(resp.Body).Decode(&fail); err == nil && fail.Error != "" {
			return fmt.Errorf("signaling: %s", fail.Error)
		}
		return fmt.Errorf("signaling: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
