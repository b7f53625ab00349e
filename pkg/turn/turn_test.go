package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"testing"
	"time"

	"github.com/snapbooth/snapbooth/pkg/config"
)

func fixedIssuer(conf config.Turn, at time.Time) *Issuer {
	i := NewIssuer(conf)
	i.now = func() time.Time { return at }
	return i
}

func TestIssue(t *testing.T) {
	at := time.Unix(1700000000, 0)
	conf := config.Turn{
		Address: "relay.example.com:3478",
		Secret:  "north-remembers",
		Realm:   "snapbooth",
		TTL:     time.Hour,
		TlsPort: 5349,
	}
	creds, err := fixedIssuer(conf, at).Issue()
	if err != nil {
		t.Fatal(err)
	}

	if creds.Username != "1700003600:snapbooth" {
		t.Fatalf("username %q", creds.Username)
	}
	mac := hmac.New(sha1.New, []byte(conf.Secret))
	mac.Write([]byte(creds.Username))
	if want := base64.StdEncoding.EncodeToString(mac.Sum(nil)); creds.Credential != want {
		t.Fatalf("credential %q, want %q", creds.Credential, want)
	}
	if creds.TTL != 3600 {
		t.Fatalf("ttl %d", creds.TTL)
	}

	expiry, err := creds.Expiry()
	if err != nil {
		t.Fatal(err)
	}
	if !expiry.Equal(at.Add(time.Hour)) {
		t.Fatalf("expiry %v, want %v", expiry, at.Add(time.Hour))
	}
}

func TestIssueUrls(t *testing.T) {
	conf := config.Turn{
		Address: "relay.example.com:3478",
		Secret:  "s",
		Realm:   "snapbooth",
		TTL:     time.Minute,
		TlsPort: 5349,
	}
	creds, err := NewIssuer(conf).Issue()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"turn:relay.example.com:3478?transport=udp",
		"turns:relay.example.com:5349",
	}
	if len(creds.Urls) != len(want) {
		t.Fatalf("urls %v", creds.Urls)
	}
	for i := range want {
		if creds.Urls[i] != want[i] {
			t.Fatalf("url %d is %q, want %q", i, creds.Urls[i], want[i])
		}
	}
}

func TestIssueEveryCallDiffersOverTime(t *testing.T) {
	conf := config.Turn{Address: "r:3478", Secret: "s", Realm: "x", TTL: time.Hour}
	a, _ := fixedIssuer(conf, time.Unix(1000, 0)).Issue()
	b, _ := fixedIssuer(conf, time.Unix(2000, 0)).Issue()
	if a.Username == b.Username || a.Credential == b.Credential {
		t.Fatal("credentials did not rotate with time")
	}
}

func TestIssueUnconfigured(t *testing.T) {
	for _, conf := range []config.Turn{
		{},
		{Address: "r:3478"},
		{Secret: "s"},
	} {
		if _, err := NewIssuer(conf).Issue(); err != ErrNotConfigured {
			t.Fatalf("conf %+v: expected ErrNotConfigured, got %v", conf, err)
		}
	}
	if ErrNotConfigured.Error() != "TURN server not configured" {
		t.Fatalf("unexpected error text %q", ErrNotConfigured)
	}
}
