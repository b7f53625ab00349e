// Package signaler assembles the rendezvous server: the poll signaling
// endpoint, the push hub, relay credential issuance and health reporting,
// all on top of a single in-process room registry.
package signaler

import (
	"context"
	"net/http"

	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/monitoring"
	"github.com/snapbooth/snapbooth/pkg/network/httpx"
	"github.com/snapbooth/snapbooth/pkg/rooms"
	"github.com/snapbooth/snapbooth/pkg/service"
	"github.com/snapbooth/snapbooth/pkg/turn"
)

type Signaler struct {
	conf     config.SignalerConfig
	log      *logger.Logger
	rooms    *rooms.Registry
	turn     *turn.Issuer
	hub      *Hub
	services service.Group
}

func New(conf config.SignalerConfig, log *logger.Logger) (*Signaler, error) {
	reg := rooms.NewRegistry(conf.Signaler.Rooms, log)
	s := &Signaler{
		conf:  conf,
		log:   log,
		rooms: reg,
		turn:  turn.NewIssuer(conf.Turn),
		hub:   NewHub(reg, log),
	}

	server, err := httpx.NewServer(
		conf.Signaler.Server.GetAddr(),
		func(*httpx.Server) http.Handler {
			mux := httpx.NewServeMux()
			mux.HandleFunc("/signaling", s.handleSignaling)
			mux.HandleFunc("/turn-credentials", s.handleTurnCredentials)
			mux.HandleFunc("/health", s.handleHealth)
			mux.HandleFunc("/ws", s.hub.handleConnection)
			return mux
		},
		httpx.WithServerConfig(conf.Signaler.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	s.services.Add(server, rooms.NewSweeper(reg, conf.Signaler.Rooms, log))
	s.services.AddIf(conf.Signaler.Monitoring.IsEnabled(),
		monitoring.New(conf.Signaler.Monitoring, "sig", log))
	return s, nil
}

func (s *Signaler) Start() { s.services.Start() }

func (s *Signaler) Shutdown(ctx context.Context) error { return s.services.Shutdown(ctx) }
