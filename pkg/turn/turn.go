// Package turn issues time-limited HMAC credentials for a TURN relay.
//
// The relay validates credentials on its own by re-computing the HMAC from
// the shared secret and the expiry timestamp embedded in the username, so
// nothing is stored server-side and revocation is implicit expiry.
package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/snapbooth/snapbooth/pkg/config"
)

var ErrNotConfigured = errors.New("TURN server not configured")

// Credentials is one freshly issued relay credential set.
type Credentials struct {
	Urls       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
	TTL        int      `json:"ttl"`
}

// Issuer mints credentials for the configured relay. Stateless.
type Issuer struct {
	conf config.Turn
	now  func() time.Time
}

func NewIssuer(conf config.Turn) *Issuer { return &Issuer{conf: conf, now: time.Now} }

// Issue generates a new credential pair valid for the configured TTL.
// Safe for concurrent use; every call yields an independent credential.
func (i *Issuer) Issue() (*Credentials, error) {
	if i.conf.Address == "" || i.conf.Secret == "" {
		return nil, ErrNotConfigured
	}
	expiry := i.now().Add(i.conf.TTL).Unix()
	username := fmt.Sprintf("%d:%s", expiry, i.conf.Realm)

	mac := hmac.New(sha1.New, []byte(i.conf.Secret))
	mac.Write([]byte(username))
	credential := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return &Credentials{
		Urls:       i.urls(),
		Username:   username,
		Credential: credential,
		TTL:        int(i.conf.TTL / time.Second),
	}, nil
}

// urls returns the plain and the TLS variants of the relay endpoint.
// The TLS form is derived by swapping the plaintext port for the TLS one.
func (i *Issuer) urls() []string {
	urls := []string{"turn:" + i.conf.Address + "?transport=udp"}
	if host, _, err := net.SplitHostPort(i.conf.Address); err == nil && i.conf.TlsPort > 0 {
		urls = append(urls, "turns:"+net.JoinHostPort(host, strconv.Itoa(i.conf.TlsPort)))
	}
	return urls
}

// AsICEServers converts the credentials for pion consumers.
func (c *Credentials) AsICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{{
		URLs:       c.Urls,
		Username:   c.Username,
		Credential: c.Credential,
	}}
}

// Expiry extracts the expiry timestamp embedded in the username.
func (c *Credentials) Expiry() (time.Time, error) {
	var unix int64
	var realm string
	if _, err := fmt.Sscanf(c.Username, "%d:%s", &unix, &realm); err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}
