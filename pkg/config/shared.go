package config

import (
	"time"
)

type (
	// Server contains the HTTP(S) server part of the config.
	Server struct {
		Address  string
		Https    bool
		PortRoll bool
		Tls      struct {
			Address   string
			HttpsCert string
			HttpsKey  string
			Domain    string
		}
	}
	// Monitoring contains the pprof/Prometheus side-server config.
	Monitoring struct {
		Port             int
		URLPrefix        string
		MetricEnabled    bool
		ProfilingEnabled bool
	}
	// Rooms contains the room registry lifecycle params.
	Rooms struct {
		IdleTimeout   time.Duration
		SweepInterval time.Duration
	}
	// Turn contains the relay credential issuance params.
	// Secret never leaves the server process.
	Turn struct {
		Address string
		Secret  string
		Realm   string
		TTL     time.Duration
		TlsPort int
	}
	// Webrtc contains the pion peer connection params.
	Webrtc struct {
		DisableDefaultInterceptors bool
		IceServers                 []IceServer
		IcePorts                   struct {
			Min uint16
			Max uint16
		}
		LogLevel int
	}
	IceServer struct {
		Urls       string `json:"urls,omitempty"`
		Username   string `json:"username,omitempty"`
		Credential string `json:"credential,omitempty"`
	}
	// Session contains the peer session state machine params.
	Session struct {
		MaxRetries     int
		RetryBackoff   time.Duration
		PollInterval   time.Duration
		RequestTimeout time.Duration
	}
	// Probe contains the connectivity verifier params.
	Probe struct {
		GatherTimeout time.Duration
	}
)

func (s Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

func (m Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }

func (w Webrtc) HasPortRange() bool { return w.IcePorts.Min > 0 && w.IcePorts.Max > 0 }
