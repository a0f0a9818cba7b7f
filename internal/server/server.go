package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"agentlog-shell/internal/config"
	"agentlog-shell/internal/metrics"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

var errAlreadyRunning = errors.New("log server already running")

// LogServer is the loopback listener agents post their log events to.
//
// Lifecycle: NotStarted → Running. Start binds the socket on the caller's
// goroutine (so a bind failure is reported) and serves on a background
// goroutine for the rest of the process. Close exists for tests and the
// CLI's signal handling only.
type LogServer struct {
	cfg     config.Config
	handler http.Handler

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func NewLogServer(cfg config.Config, m *metrics.Metrics, pub Publisher) *LogServer {
	return &LogServer{
		cfg:     cfg,
		handler: NewHandler(cfg, m, pub),
	}
}

// Start binds LOG_ADDR and returns once the listener accepts connections.
func (s *LogServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.cfg.LogAddr)
	if err != nil {
		return errors.Wrapf(err, "bind log server on %s", s.cfg.LogAddr)
	}

	// Short timeouts: agents post small JSON bodies and a stuck sender
	// must not hold a connection open.
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	s.srv, s.ln = srv, ln

	go func() {
		zlog.Info().Str("addr", ln.Addr().String()).Msg("log server listening")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("log server stopped")
		}
	}()
	return nil
}

// Addr returns the bound address, nil before Start.
func (s *LogServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *LogServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}
