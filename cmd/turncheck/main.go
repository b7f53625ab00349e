package main

import (
	"context"
	"os"

	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/probe"
	"github.com/snapbooth/snapbooth/pkg/session"
	"github.com/snapbooth/snapbooth/pkg/turn"
	webrtcx "github.com/snapbooth/snapbooth/pkg/webrtc"
)

var Version = "?"

// turncheck fetches relay credentials from the signaling server and
// verifies the relay path end to end. Exit code 0 means a photo session
// would traverse the relay.
func main() {
	conf := config.NewBoothConfig()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Booth.Debug, "chk", false)
	log.Info().Msgf("version %s", Version)

	client := session.NewClient(conf.Booth.Signaler, conf.Booth.Session.RequestTimeout)
	var creds turn.Credentials
	if err := client.TurnCredentials(context.Background(), &creds); err != nil {
		log.Error().Err(err).Msg("credential fetch failed")
		os.Exit(1)
	}
	if expiry, err := creds.Expiry(); err == nil {
		log.Info().Time("expiry", expiry).Msg("credentials issued")
	}

	factory, err := webrtcx.NewApiFactory(conf.Webrtc, log)
	if err != nil {
		log.Error().Err(err).Msg("webrtc init failed")
		os.Exit(1)
	}

	p := probe.New(conf.Booth.Probe, factory, log)
	res, err := p.Verify(context.Background(), &creds)
	if err != nil {
		log.Error().Err(err).Int("candidates", res.GatheredCandidates).Msg("relay unreachable")
		os.Exit(1)
	}
	log.Info().Int64("latencyMs", res.LatencyMs).Msg("relay ok")
}
