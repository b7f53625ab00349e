package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/network/httpx"
)

// Monitoring exposes pprof and Prometheus endpoints on a side port.
type Monitoring struct {
	conf   config.Monitoring
	tag    string
	server *httpx.Server
	log    *logger.Logger
}

// New creates new monitoring service.
// The tag param specifies owner label for logs.
func New(conf config.Monitoring, tag string, log *logger.Logger) *Monitoring {
	serv, _ := httpx.NewServer(
		fmt.Sprintf(":%d", conf.Port),
		func(serv *httpx.Server) http.Handler {
			h := http.NewServeMux()

			if conf.ProfilingEnabled {
				prefix := fmt.Sprintf("%s/debug/pprof", conf.URLPrefix)
				log.Info().Msgf("[%v] profiling at %v", tag, serv.Addr+prefix)
				h.HandleFunc(prefix+"/", pprof.Index)
				h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
				h.HandleFunc(prefix+"/profile", pprof.Profile)
				h.HandleFunc(prefix+"/symbol", pprof.Symbol)
				h.HandleFunc(prefix+"/trace", pprof.Trace)
				h.Handle(prefix+"/allocs", pprof.Handler("allocs"))
				h.Handle(prefix+"/block", pprof.Handler("block"))
				h.Handle(prefix+"/goroutine", pprof.Handler("goroutine"))
				h.Handle(prefix+"/heap", pprof.Handler("heap"))
				h.Handle(prefix+"/mutex", pprof.Handler("mutex"))
				h.Handle(prefix+"/threadcreate", pprof.Handler("threadcreate"))
			}

			if conf.MetricEnabled {
				metricPath := fmt.Sprintf("%s/metrics", conf.URLPrefix)
				log.Info().Msgf("[%v] metrics at %v", tag, serv.Addr+metricPath)
				h.Handle(metricPath, promhttp.Handler())
			}

			return h
		},
		httpx.WithLogger(log),
	)
	return &Monitoring{conf: conf, tag: tag, server: serv, log: log}
}

func (m *Monitoring) Run() {
	if m.server == nil {
		return
	}
	m.log.Info().Msgf("[%v] starting monitoring server at %v", m.tag, m.server.Addr)
	m.server.Run()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	m.log.Info().Msgf("[%v] shutting down monitoring server", m.tag)
	return m.server.Server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
