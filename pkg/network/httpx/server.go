package httpx

import (
	"net/http"
	"net/url"
	"time"

	"github.com/snapbooth/snapbooth/pkg/logger"
	"golang.org/x/crypto/acme/autocert"
)

type Server struct {
	http.Server

	autoCert *autocert.Manager
	opts     Options

	listener *Listener
	redirect *Server
	log      *logger.Logger
}

type (
	Mux struct {
		*http.ServeMux
	}
	Handler        = http.Handler
	HandlerFunc    = http.HandlerFunc
	ResponseWriter = http.ResponseWriter
	Request        = http.Request
)

// NewServeMux allocates and returns a new ServeMux.
func NewServeMux() *Mux { return &Mux{ServeMux: http.NewServeMux()} }

func (m *Mux) Handle(pattern string, handler Handler) *Mux {
	m.ServeMux.Handle(pattern, handler)
	return m
}

func (m *Mux) HandleFunc(pattern string, handler func(ResponseWriter, *Request)) *Mux {
	m.ServeMux.HandleFunc(pattern, handler)
	return m
}

func NewServer(address string, handler func(*Server) Handler, options ...Option) (*Server, error) {
	opts := &Options{
		HttpsRedirect: true,
		IdleTimeout:   120 * time.Second,
		ReadTimeout:   120 * time.Second,
		WriteTimeout:  120 * time.Second,
	}
	opts.override(options...)
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	server := &Server{
		Server: http.Server{
			Addr:         address,
			IdleTimeout:  opts.IdleTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		opts: *opts,
		log:  opts.Logger,
	}
	server.Handler = handler(server)

	if opts.Https && opts.IsAutoHttpsCert() {
		server.autoCert = NewTLSConfig(opts.HttpsDomain).CertManager
		server.TLSConfig = server.autoCert.TLSConfig()
	}

	addr := server.Addr
	if addr == "" {
		addr = ":http"
		if opts.Https {
			addr = ":https"
		}
		opts.Logger.Warn().Msgf("Empty server address has been changed to %v", addr)
	}
	listener, err := NewListener(addr, server.opts.PortRoll, server.log)
	if err != nil {
		return nil, err
	}
	server.listener = listener
	server.Addr = mergeAddresses(server.Addr, *listener)
	opts.Logger.Info().Msgf("httpx %v (%v)", server.Addr, address)

	return server, nil
}

func (s *Server) Mux() *Mux { return NewServeMux() }

func (s *Server) Run() { go s.run() }

func (s *Server) run() {
	protocol := s.GetProtocol()
	s.log.Debug().Msgf("Starting %s server on %s", protocol, s.Addr)

	if s.opts.Https && s.opts.HttpsRedirect {
		rdr, err := s.redirection()
		if err != nil {
			s.log.Error().Err(err).Msg("couldn't init redirection server")
		}
		s.redirect = rdr
		if s.redirect != nil {
			s.redirect.Run()
		}
	}

	var err error
	if s.opts.Https {
		err = s.ServeTLS(*s.listener, s.opts.HttpsCert, s.opts.HttpsKey)
	} else {
		err = s.Serve(*s.listener)
	}
	switch err {
	case http.ErrServerClosed:
		s.log.Debug().Msgf("%s server was closed", protocol)
	default:
		s.log.Error().Err(err).Send()
	}
}

func (s *Server) Stop() error {
	if s.redirect != nil {
		_ = s.redirect.Stop()
	}
	return s.Server.Close()
}

func (s *Server) GetProtocol() string {
	if s.opts.Https {
		return "https"
	}
	return "http"
}

func (s *Server) redirection() (*Server, error) {
	address := s.Addr
	if s.opts.HttpsDomain != "" {
		address = s.opts.HttpsDomain
	}
	addr := mergeAddresses(address, *s.listener)

	srv, err := NewServer(s.opts.HttpsRedirectAddress, func(serv *Server) Handler {
		h := NewServeMux()
		h.Handle("/", HandlerFunc(func(w ResponseWriter, r *Request) {
			httpsURL := url.URL{Scheme: "https", Host: addr, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
			http.Redirect(w, r, httpsURL.String(), http.StatusFound)
		}))
		if serv.autoCert != nil {
			return serv.autoCert.HTTPHandler(h)
		}
		return h
	},
		WithLogger(s.log),
	)
	s.log.Info().Str("addr", addr).Msg("Start HTTPS redirect server")
	return srv, err
}
