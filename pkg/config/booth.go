package config

import (
	goflag "flag"
	"time"

	flag "github.com/spf13/pflag"
)

// BoothConfig is the full configuration of the booth client.
type BoothConfig struct {
	Booth struct {
		Debug    bool
		Signaler string
		Room     string
		Session  Session
		Probe    Probe
	}
	Webrtc Webrtc
}

func NewBoothConfig() (conf BoothConfig) {
	conf.Booth.Signaler = "http://localhost:8000"
	conf.Booth.Session = Session{
		MaxRetries:     3,
		RetryBackoff:   2 * time.Second,
		PollInterval:   time.Second,
		RequestTimeout: 10 * time.Second,
	}
	conf.Booth.Probe.GatherTimeout = 8 * time.Second
	conf.Webrtc.IceServers = []IceServer{{Urls: "stun:stun.l.google.com:19302"}}
	return
}

func (c *BoothConfig) ParseFlags() {
	confPath := flag.StringP("conf", "c", "", "the config file path")
	flag.BoolVarP(&c.Booth.Debug, "debug", "d", c.Booth.Debug, "debug logging")
	flag.StringVarP(&c.Booth.Signaler, "signaler", "s", c.Booth.Signaler, "signaling server base URL")
	flag.StringVarP(&c.Booth.Room, "room", "r", c.Booth.Room, "room id to join")
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	_ = LoadConfig(c, *confPath)
}
