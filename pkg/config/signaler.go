package config

import (
	goflag "flag"
	"time"

	flag "github.com/spf13/pflag"
)

// SignalerConfig is the full configuration of the signaling server.
type SignalerConfig struct {
	Signaler struct {
		Debug      bool
		Server     Server
		Rooms      Rooms
		Monitoring Monitoring
	}
	Turn Turn
}

func NewSignalerConfig() (conf SignalerConfig) {
	conf.Signaler.Server.Address = ":8000"
	conf.Signaler.Rooms.IdleTimeout = 30 * time.Minute
	conf.Signaler.Rooms.SweepInterval = 5 * time.Minute
	conf.Signaler.Monitoring = Monitoring{Port: 6601, URLPrefix: "/signaler", MetricEnabled: true}
	conf.Turn.Realm = "snapbooth"
	conf.Turn.TTL = time.Hour
	conf.Turn.TlsPort = 5349
	return
}

// ParseFlags updates the config with the provided command-line flags
// on top of the values taken from the config file and the environment.
func (c *SignalerConfig) ParseFlags() {
	confPath := flag.StringP("conf", "c", "", "the config file path")
	flag.BoolVarP(&c.Signaler.Debug, "debug", "d", c.Signaler.Debug, "debug logging")
	flag.StringVarP(&c.Signaler.Server.Address, "address", "a", c.Signaler.Server.Address, "server address")
	flag.StringVar(&c.Turn.Address, "turn", c.Turn.Address, "TURN relay address (host:port)")
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	_ = LoadConfig(c, *confPath)
}

// SignalerConfigEnv loads the signaler config from the environment only,
// for tests and embedded use.
func SignalerConfigEnv() SignalerConfig {
	conf := NewSignalerConfig()
	_ = LoadConfigEnv(&conf)
	return conf
}
