package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "richard/pkg/logx"
)

// DefaultAddr keeps the listener local unless configured otherwise.
const DefaultAddr = "127.0.0.1:9090"

// Server serves /metrics and, optionally, /debug/pprof/.
type Server struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	addr string
}

func NewServer(log logx.Logger) *Server {
	return &Server{log: log.With(logx.String("comp", "metrics"))}
}

// Handler builds the mux without starting a listener.
func Handler(reg *prometheus.Registry, withPprof bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	if withPprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// Start listens on addr. It returns once the listener is bound.
func (s *Server) Start(addr string, h http.Handler) error {
	if addr == "" {
		addr = DefaultAddr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("metrics server already running")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	s.srv = srv
	s.addr = ln.Addr().String()

	go func(addr string) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("metrics server error", logx.String("addr", addr), logx.Err(err))
		}
	}(s.addr)
	s.log.Info("metrics enabled", logx.String("addr", s.addr))
	return nil
}

// Addr reports the bound address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv, addr := s.srv, s.addr
	s.srv, s.addr = nil, ""
	s.mu.Unlock()
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("metrics shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	s.log.Info("metrics disabled", logx.String("addr", addr))
}
