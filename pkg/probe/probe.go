// Package probe performs a pre-flight reachability check of the relay
// infrastructure before a booth commits to a photo session.
package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pion/stun"
	"github.com/pion/webrtc/v3"
	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/turn"
	webrtcx "github.com/snapbooth/snapbooth/pkg/webrtc"
)

// Result is what a verification run learned about the relay path.
type Result struct {
	Reachable          bool
	LatencyMs          int64
	SawRelayCandidate  bool
	GatheredCandidates int
}

type Prober struct {
	conf    config.Probe
	factory *webrtcx.ApiFactory
	log     *logger.Logger
}

func New(conf config.Probe, factory *webrtcx.ApiFactory, log *logger.Logger) *Prober {
	return &Prober{conf: conf, factory: factory, log: log.Extend(log.With().Str("m", "probe"))}
}

// Verify checks that the relay described by creds is usable: a STUN
// binding round-trip for latency, then a relay-restricted ICE gathering
// run that must surface at least one relayed candidate. Gathering that
// completes without one, or outruns the configured timeout, fails.
func (p *Prober) Verify(ctx context.Context, creds *turn.Credentials) (Result, error) {
	var res Result
	if creds == nil || len(creds.Urls) == 0 {
		return res, turn.ErrNotConfigured
	}

	if latency, err := p.stunLatency(ctx, creds); err != nil {
		p.log.Warn().Err(err).Msg("stun binding failed")
	} else {
		res.LatencyMs = latency.Milliseconds()
	}

	pc, err := p.factory.NewRelayOnlyPeer(creds.AsICEServers())
	if err != nil {
		return res, err
	}
	defer pc.Close()

	relay := make(chan struct{}, 1)
	complete := make(chan struct{}, 1)
	gathered := make(chan struct{}, 16)
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			select {
			case complete <- struct{}{}:
			default:
			}
			return
		}
		select {
		case gathered <- struct{}{}:
		default:
		}
		if c.Typ == webrtc.ICECandidateTypeRelay {
			select {
			case relay <- struct{}{}:
			default:
			}
		}
	})

	// gathering only starts once a local description is set
	if _, err := pc.CreateDataChannel("probe", nil); err != nil {
		return res, err
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return res, err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return res, err
	}

	timeout := p.conf.GatherTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-relay:
			res.Reachable = true
			res.SawRelayCandidate = true
			res.GatheredCandidates++
			p.log.Info().Int64("latencyMs", res.LatencyMs).Msg("relay reachable")
			return res, nil
		case <-gathered:
			res.GatheredCandidates++
		case <-complete:
			return res, fmt.Errorf("gathering finished with no relay candidate")
		case <-timer.C:
			return res, fmt.Errorf("no relay candidate within %v", timeout)
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

// stunLatency measures one binding request round-trip against the relay
// host, which doubles as a STUN server.
func (p *Prober) stunLatency(ctx context.Context, creds *turn.Credentials) (time.Duration, error) {
	addr, err := stunAddr(creds.Urls[0])
	if err != nil {
		return 0, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return 0, err
	}
	client, err := stun.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return 0, err
	}
	defer client.Close()

	start := time.Now()
	var rtt time.Duration
	var callErr error
	err = client.Do(stun.MustBuild(stun.TransactionID, stun.BindingRequest), func(res stun.Event) {
		if res.Error != nil {
			callErr = res.Error
			return
		}
		rtt = time.Since(start)
	})
	if err != nil {
		return 0, err
	}
	if callErr != nil {
		return 0, callErr
	}
	return rtt, nil
}

// stunAddr strips the scheme and query of a turn/stun URI, leaving
// host:port for dialing.
func stunAddr(uri string) (string, error) {
	addr := uri
	if i := strings.Index(addr, ":"); i >= 0 && !strings.Contains(addr[:i], ".") {
		addr = addr[i+1:]
	}
	if i := strings.Index(addr, "?"); i >= 0 {
		addr = addr[:i]
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", fmt.Errorf("relay uri %q: %w", uri, err)
	}
	return addr, nil
}
