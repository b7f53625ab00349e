// Package webrtc wraps pion peer connection construction with the
// application config and logging.
package webrtc

import (
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
)

type ApiFactory struct {
	api  *webrtc.API
	conf webrtc.Configuration
}

func NewApiFactory(conf config.Webrtc, log *logger.Logger, extra ...webrtc.ICEServer) (*ApiFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	i := &interceptor.Registry{}
	if !conf.DisableDefaultInterceptors {
		if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return nil, err
		}
	}
	customLogger := logger.NewPionLogger(log, conf.LogLevel)
	s := webrtc.SettingEngine{LoggerFactory: customLogger}
	if conf.HasPortRange() {
		if err := s.SetEphemeralUDPPortRange(conf.IcePorts.Min, conf.IcePorts.Max); err != nil {
			return nil, err
		}
	}

	c := webrtc.Configuration{ICEServers: []webrtc.ICEServer{}}
	for _, server := range conf.IceServers {
		c.ICEServers = append(c.ICEServers, webrtc.ICEServer{
			URLs:       []string{server.Urls},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	c.ICEServers = append(c.ICEServers, extra...)

	return &ApiFactory{
		api:  webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		conf: c,
	}, nil
}

func (a *ApiFactory) NewPeer() (*webrtc.PeerConnection, error) {
	return a.api.NewPeerConnection(a.conf)
}

// NewRelayOnlyPeer builds a connection restricted to relayed candidates,
// for pre-flight relay reachability checks.
func (a *ApiFactory) NewRelayOnlyPeer(servers []webrtc.ICEServer) (*webrtc.PeerConnection, error) {
	conf := webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: webrtc.ICETransportPolicyRelay,
	}
	return a.api.NewPeerConnection(conf)
}
