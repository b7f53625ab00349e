package signaler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/snapbooth/snapbooth/pkg/api"
	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/rooms"
	"github.com/snapbooth/snapbooth/pkg/session"
	"github.com/snapbooth/snapbooth/pkg/turn"
)

func testSignaler(conf config.SignalerConfig) *Signaler {
	log := logger.Default()
	reg := rooms.NewRegistry(conf.Signaler.Rooms, log)
	return &Signaler{
		conf:  conf,
		log:   log,
		rooms: reg,
		turn:  turn.NewIssuer(conf.Turn),
		hub:   NewHub(reg, log),
	}
}

func testServer(t *testing.T, conf config.SignalerConfig) (*Signaler, *httptest.Server) {
	t.Helper()
	s := testSignaler(conf)
	mux := http.NewServeMux()
	mux.HandleFunc("/signaling", s.handleSignaling)
	mux.HandleFunc("/turn-credentials", s.handleTurnCredentials)
	mux.HandleFunc("/health", s.handleHealth)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv
}

func post(t *testing.T, url string, rq api.Request) *http.Response {
	t.Helper()
	body, err := json.Marshal(rq)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url+"/signaling", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// Two participants complete a full offer/answer/candidate exchange over
// the poll endpoint.
func TestPollExchange(t *testing.T) {
	_, srv := testServer(t, config.NewSignalerConfig())
	ctx := context.Background()
	alice := session.NewClient(srv.URL, time.Second)
	bob := session.NewClient(srv.URL, time.Second)

	join, err := alice.Join(ctx, "studio", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !join.First {
		t.Fatalf("alice is not first: %+v", join)
	}
	join, err = bob.Join(ctx, "studio", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if join.First || len(join.Others) != 1 || join.Others[0] != "alice" {
		t.Fatalf("bob's view is wrong: %+v", join)
	}

	offer := api.SessionDescription{Type: "offer", SDP: "v=0 alice"}
	if err := alice.SendOffer(ctx, "studio", "alice", offer); err != nil {
		t.Fatal(err)
	}
	mid := "0"
	if err := alice.SendCandidate(ctx, "studio", "alice", api.Candidate{Candidate: "candidate:1", SDPMid: &mid}); err != nil {
		t.Fatal(err)
	}

	got, err := bob.Messages(ctx, "studio", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].T != api.Offer || got[1].T != api.IceCandidate {
		t.Fatalf("bob drained %v", got)
	}
	var sd api.SessionDescription
	if err := json.Unmarshal(got[0].Data, &sd); err != nil || sd.SDP != offer.SDP {
		t.Fatalf("offer payload mangled: %s", got[0].Data)
	}

	if err := bob.SendAnswer(ctx, "studio", "bob", api.SessionDescription{Type: "answer", SDP: "v=0 bob"}); err != nil {
		t.Fatal(err)
	}
	got, err = alice.Messages(ctx, "studio", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].T != api.Answer || got[0].From != "bob" {
		t.Fatalf("alice drained %v", got)
	}

	// nothing left for either side
	if got, _ := bob.Messages(ctx, "studio", "bob"); len(got) != 0 {
		t.Fatalf("redelivery to bob: %v", got)
	}
	if err := alice.Leave(ctx, "studio", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := bob.Leave(ctx, "studio", "bob"); err != nil {
		t.Fatal(err)
	}
}

func TestPollRejects(t *testing.T) {
	_, srv := testServer(t, config.NewSignalerConfig())

	tests := []struct {
		name string
		rq   api.Request
	}{
		{"missing ids", api.Request{T: api.Join}},
		{"missing peer", api.Request{T: api.Join, Room: "studio"}},
		{"unknown type", api.Request{T: "selfie", Room: "studio", Peer: "alice"}},
		{"malformed offer", api.Request{T: api.Offer, Room: "studio", Peer: "alice", Payload: json.RawMessage(`"not an object"`)}},
		{"malformed candidate", api.Request{T: api.IceCandidate, Room: "studio", Peer: "alice", Payload: json.RawMessage(`[1,2]`)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, srv.URL, tc.rq)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", resp.StatusCode)
			}
			var fail api.ErrorReply
			if err := json.NewDecoder(resp.Body).Decode(&fail); err != nil || fail.Error == "" {
				t.Fatalf("error reply broken: %v %v", fail, err)
			}
		})
	}
}

func TestPollMethodAndBody(t *testing.T) {
	_, srv := testServer(t, config.NewSignalerConfig())

	resp, err := http.Get(srv.URL + "/signaling")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/signaling", "application/json", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("broken body status %d", resp.StatusCode)
	}
}

// A signal recorded for a room nobody is in vanishes without an error.
func TestPollSignalIntoAbsentRoom(t *testing.T) {
	_, srv := testServer(t, config.NewSignalerConfig())
	resp := post(t, srv.URL, api.Request{
		T: api.Offer, Room: "ghost", Peer: "alice",
		Payload: json.RawMessage(`{"type":"offer","sdp":"x"}`),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestTurnCredentialsEndpoint(t *testing.T) {
	conf := config.NewSignalerConfig()
	conf.Turn.Address = "relay.example.com:3478"
	conf.Turn.Secret = "secret"
	_, srv := testServer(t, conf)

	resp, err := http.Get(srv.URL + "/turn-credentials")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var creds turn.Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		t.Fatal(err)
	}
	if creds.Username == "" || creds.Credential == "" || len(creds.Urls) == 0 {
		t.Fatalf("incomplete credentials: %+v", creds)
	}
}

func TestTurnCredentialsUnconfigured(t *testing.T) {
	_, srv := testServer(t, config.NewSignalerConfig())

	resp, err := http.Get(srv.URL + "/turn-credentials")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", resp.StatusCode)
	}
	var fail api.ErrorReply
	if err := json.NewDecoder(resp.Body).Decode(&fail); err != nil {
		t.Fatal(err)
	}
	if fail.Error != "TURN server not configured" {
		t.Fatalf("error %q", fail.Error)
	}
}

func TestHealth(t *testing.T) {
	s, srv := testServer(t, config.NewSignalerConfig())
	_, _ = s.rooms.Join("studio", "alice")
	_, _ = s.rooms.Join("studio", "bob")

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var h api.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.Rooms != 1 || h.Participants != 2 || h.Connections != 0 {
		t.Fatalf("health %+v", h)
	}
}
