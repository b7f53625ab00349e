package main

import (
	"context"

	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/os"
	"github.com/snapbooth/snapbooth/pkg/signaler"
)

var Version = "?"

func main() {
	conf := config.NewSignalerConfig()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Signaler.Debug, "sig", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	s, err := signaler.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("signaler init failed")
	}
	s.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := s.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
