package main

import (
	"context"

	"github.com/pion/webrtc/v3"
	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/os"
	"github.com/snapbooth/snapbooth/pkg/session"
	"github.com/snapbooth/snapbooth/pkg/turn"
	webrtcx "github.com/snapbooth/snapbooth/pkg/webrtc"
)

var Version = "?"

func main() {
	conf := config.NewBoothConfig()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Booth.Debug, "booth", false)

	log.Info().Msgf("version %s", Version)
	if conf.Booth.Room == "" {
		log.Fatal().Msg("a room id is required, see --room")
	}

	client := session.NewClient(conf.Booth.Signaler, conf.Booth.Session.RequestTimeout)

	// relay credentials are optional, STUN-only networks still work
	var extra []webrtc.ICEServer
	var creds turn.Credentials
	if err := client.TurnCredentials(context.Background(), &creds); err != nil {
		log.Warn().Err(err).Msg("no relay credentials, continuing without TURN")
	} else {
		extra = creds.AsICEServers()
	}

	factory, err := webrtcx.NewApiFactory(conf.Webrtc, log, extra...)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc init failed")
	}

	sess := session.New(conf.Booth.Session, client, session.PionPeers(factory), log)
	sess.OnStateChange = func(state session.State) {
		log.Info().Str("state", state.String()).Msg("session")
	}
	sess.OnRemoteTrack = func(track *webrtc.TrackRemote) {
		log.Info().Str("kind", track.Kind().String()).Str("codec", track.Codec().MimeType).
			Msg("remote track")
	}
	sess.OnError = func(err error) {
		log.Error().Err(err).Msg("session failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := sess.Join(ctx, conf.Booth.Room); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	defer func() {
		if err := sess.Leave(context.Background()); err != nil {
			log.Error().Err(err).Msg("leave errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
