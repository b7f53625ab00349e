package api

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestUnwrap(t *testing.T) {
	if sd := Unwrap[SessionDescription]([]byte(`{"type":"offer","sdp":"v=0"}`)); sd == nil || sd.SDP != "v=0" {
		t.Fatalf("valid payload rejected: %+v", sd)
	}
	for _, raw := range []string{`"just a string"`, `[1,2,3]`, `{bro`, ``} {
		if Unwrap[SessionDescription]([]byte(raw)) != nil {
			t.Fatalf("payload %q unwrapped", raw)
		}
	}
}

func TestRequestValid(t *testing.T) {
	tests := []struct {
		rq Request
		ok bool
	}{
		{Request{T: Join, Room: "studio", Peer: "alice"}, true},
		{Request{T: Join, Room: "studio"}, false},
		{Request{T: Join, Peer: "alice"}, false},
		{Request{T: Join}, false},
	}
	for _, tc := range tests {
		if tc.rq.Valid() != tc.ok {
			t.Fatalf("%+v valid=%v, want %v", tc.rq, tc.rq.Valid(), tc.ok)
		}
	}
}

func TestRequestDecodeKeepsRawPayload(t *testing.T) {
	raw := []byte(`{"type":"offer","roomId":"studio","peerId":"alice","data":{"type":"offer","sdp":"v=0 x"}}`)
	var rq Request
	if err := json.Unmarshal(raw, &rq); err != nil {
		t.Fatal(err)
	}
	if rq.T != Offer || !rq.Valid() {
		t.Fatalf("decoded %+v", rq)
	}
	// the payload stays untouched until the tag is known
	if string(rq.Payload) != `{"type":"offer","sdp":"v=0 x"}` {
		t.Fatalf("payload mangled: %s", rq.Payload)
	}
}

func TestNeedsPayload(t *testing.T) {
	for _, mt := range []MT{Offer, Answer, IceCandidate, PositionUpdate} {
		if !mt.NeedsPayload() {
			t.Fatalf("%q should need a payload", mt)
		}
	}
	for _, mt := range []MT{Join, GetMessages, Leave, Ping} {
		if mt.NeedsPayload() {
			t.Fatalf("%q should not need a payload", mt)
		}
	}
}
