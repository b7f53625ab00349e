package rooms

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/snapbooth/snapbooth/pkg/api"
	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
)

func testRegistry() *Registry {
	return NewRegistry(config.Rooms{IdleTimeout: 30 * time.Minute}, logger.Default())
}

func blob(s string) json.RawMessage { return json.RawMessage(s) }

func TestJoinRoles(t *testing.T) {
	reg := testRegistry()

	info, err := reg.Join("studio", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !info.First || len(info.Others) != 0 || info.Total != 1 {
		t.Fatalf("first joiner got %+v", info)
	}

	info, err = reg.Join("studio", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if info.First || info.Total != 2 {
		t.Fatalf("second joiner got %+v", info)
	}
	if len(info.Others) != 1 || info.Others[0] != "alice" {
		t.Fatalf("second joiner sees %v", info.Others)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("studio", "alice")
	_ = reg.RecordOffer("studio", "alice", blob(`{"type":"offer"}`))

	info, err := reg.Join("studio", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if info.Total != 1 {
		t.Fatalf("re-join duplicated the participant: %+v", info)
	}

	// the pending offer survives the re-join
	_, _ = reg.Join("studio", "bob")
	got, _ := reg.DrainMessagesFor("studio", "bob")
	if len(got) != 1 || got[0].T != api.Offer {
		t.Fatalf("pending offer lost on re-join: %v", got)
	}
}

func TestJoinBadInput(t *testing.T) {
	reg := testRegistry()
	if _, err := reg.Join("", "alice"); err != ErrBadInput {
		t.Fatalf("expected ErrBadInput, got %v", err)
	}
	if _, err := reg.Join("studio", ""); err != ErrBadInput {
		t.Fatalf("expected ErrBadInput, got %v", err)
	}
}

func TestRoomKeysAreCaseInsensitive(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("Studio", "alice")
	info, _ := reg.Join("sTUDIO", "bob")
	if info.First || len(info.Others) != 1 {
		t.Fatalf("case variants split the room: %+v", info)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one room, got %d", reg.Len())
	}
}

func TestDrainOrderAndAtMostOnce(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("studio", "alice")
	_, _ = reg.Join("studio", "bob")

	_ = reg.AppendCandidate("studio", "alice", blob(`{"candidate":"c1"}`))
	_ = reg.AppendCandidate("studio", "alice", blob(`{"candidate":"c2"}`))
	_ = reg.RecordOffer("studio", "alice", blob(`{"type":"offer","sdp":"x"}`))

	got, err := reg.DrainMessagesFor("studio", "bob")
	if err != nil {
		t.Fatal(err)
	}
	want := []api.MT{api.Offer, api.IceCandidate, api.IceCandidate}
	if len(got) != len(want) {
		t.Fatalf("drained %d messages, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.T != want[i] {
			t.Fatalf("message %d is %q, want %q", i, m.T, want[i])
		}
		if m.From != "alice" {
			t.Fatalf("message %d from %q", i, m.From)
		}
	}
	if string(got[1].Data) != `{"candidate":"c1"}` {
		t.Fatalf("candidate order broken: %s", got[1].Data)
	}

	// a second drain finds nothing, delivery is at-most-once
	got, _ = reg.DrainMessagesFor("studio", "bob")
	if len(got) != 0 {
		t.Fatalf("second drain returned %d messages", len(got))
	}
}

func TestDrainSkipsOwnMailbox(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("studio", "alice")
	_, _ = reg.Join("studio", "bob")
	_ = reg.RecordOffer("studio", "alice", blob(`{"type":"offer"}`))

	got, _ := reg.DrainMessagesFor("studio", "alice")
	if len(got) != 0 {
		t.Fatalf("alice drained her own offer: %v", got)
	}
	got, _ = reg.DrainMessagesFor("studio", "bob")
	if len(got) != 1 {
		t.Fatalf("bob got %d messages, want 1", len(got))
	}
}

func TestDrainByNonMemberDeliversNothing(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("studio", "alice")
	_, _ = reg.Join("studio", "bob")
	_ = reg.RecordOffer("studio", "alice", blob(`{"type":"offer"}`))

	got, err := reg.DrainMessagesFor("studio", "mallory")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("non-member drained %d messages: %v", len(got), got)
	}

	// the offer is still there for the member it was meant for
	got, _ = reg.DrainMessagesFor("studio", "bob")
	if len(got) != 1 || got[0].T != api.Offer {
		t.Fatalf("offer lost to the non-member drain: %v", got)
	}
}

func TestAnswerOverwrites(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("studio", "alice")
	_, _ = reg.Join("studio", "bob")

	_ = reg.RecordAnswer("studio", "alice", blob(`{"sdp":"old"}`))
	_ = reg.RecordAnswer("studio", "alice", blob(`{"sdp":"new"}`))

	got, _ := reg.DrainMessagesFor("studio", "bob")
	if len(got) != 1 || string(got[0].Data) != `{"sdp":"new"}` {
		t.Fatalf("expected last answer only, got %v", got)
	}
}

func TestRecordIntoAbsentRoomIsNoop(t *testing.T) {
	reg := testRegistry()
	if err := reg.RecordOffer("ghost", "alice", blob(`{}`)); err != nil {
		t.Fatalf("absent room errored: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatal("record created a room")
	}

	_, _ = reg.Join("studio", "alice")
	if err := reg.RecordOffer("studio", "ghost", blob(`{}`)); err != nil {
		t.Fatalf("absent participant errored: %v", err)
	}
}

func TestLeaveDropsUndelivered(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("studio", "alice")
	_, _ = reg.Join("studio", "bob")
	_ = reg.RecordOffer("studio", "alice", blob(`{"type":"offer"}`))

	if err := reg.Leave("studio", "alice"); err != nil {
		t.Fatal(err)
	}
	got, _ := reg.DrainMessagesFor("studio", "bob")
	if len(got) != 0 {
		t.Fatalf("messages of a departed peer survived: %v", got)
	}
}

func TestLeaveClosesEmptyRoom(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("studio", "alice")
	_ = reg.Leave("studio", "alice")
	if reg.Len() != 0 {
		t.Fatal("empty room kept alive")
	}
	// leaving twice, or leaving a room that never existed, is fine
	if err := reg.Leave("studio", "alice"); err != nil {
		t.Fatal(err)
	}
}

func TestIdleRoomsExpire(t *testing.T) {
	reg := testRegistry()
	clock := time.Now()
	reg.now = func() time.Time { return clock }

	_, _ = reg.Join("old", "alice")
	clock = clock.Add(20 * time.Minute)
	_, _ = reg.Join("fresh", "bob")

	clock = clock.Add(15 * time.Minute)
	reg.expire()

	if reg.Participants("old") != nil {
		t.Fatal("idle room survived the sweep")
	}
	if reg.Participants("fresh") == nil {
		t.Fatal("active room was swept")
	}
}

func TestSweptRoomIsRebornFresh(t *testing.T) {
	reg := testRegistry()
	clock := time.Now()
	reg.now = func() time.Time { return clock }

	_, _ = reg.Join("studio", "alice")
	_, _ = reg.Join("studio", "bob")
	_ = reg.RecordOffer("studio", "alice", blob(`{"type":"offer"}`))

	clock = clock.Add(31 * time.Minute)
	reg.expire()

	// same id, brand new room: no members, no stale mailboxes
	info, err := reg.Join("studio", "carol")
	if err != nil {
		t.Fatal(err)
	}
	if !info.First || info.Total != 1 {
		t.Fatalf("reborn room carried state: %+v", info)
	}
	got, _ := reg.DrainMessagesFor("studio", "carol")
	if len(got) != 0 {
		t.Fatalf("stale messages survived the sweep: %v", got)
	}
}

func TestActivityRefreshKeepsRoomAlive(t *testing.T) {
	reg := testRegistry()
	clock := time.Now()
	reg.now = func() time.Time { return clock }

	_, _ = reg.Join("studio", "alice")
	_, _ = reg.Join("studio", "bob")
	for i := 0; i < 3; i++ {
		clock = clock.Add(20 * time.Minute)
		if _, err := reg.DrainMessagesFor("studio", "bob"); err != nil {
			t.Fatal(err)
		}
		reg.expire()
	}
	if reg.Len() != 1 {
		t.Fatal("polled room was swept")
	}
}

func TestConcurrentSignaling(t *testing.T) {
	reg := testRegistry()
	_, _ = reg.Join("studio", "alice")
	_, _ = reg.Join("studio", "bob")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = reg.AppendCandidate("studio", "alice", blob(fmt.Sprintf(`{"candidate":"c%d"}`, n)))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = reg.DrainMessagesFor("studio", "bob")
		}()
	}
	wg.Wait()

	got, _ := reg.DrainMessagesFor("studio", "bob")
	_ = got
	if n := reg.ParticipantCount(); n != 2 {
		t.Fatalf("participant count drifted to %d", n)
	}
}
