package eventstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/multy/internal/commands"
	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/state"
)

// DefaultPort is the conventional event stream port. A zero Config.Port
// binds an ephemeral port.
const DefaultPort = 8765

// Config holds the server configuration
type Config struct {
	Host     string
	Port     int
	CertPath string // Serve TLS when both CertPath and KeyPath are set
	KeyPath  string

	// SubscriberBuffer is the per-connection event queue length
	SubscriberBuffer int
}

// Executor runs commands on behalf of HTTP clients. *commands.Facade implements it.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (*commands.Result, error)
}

// StaleReporter reports consecutive failed reads per resource.
type StaleReporter interface {
	Stale() map[string]int
}

// Server exposes the state cache over HTTP and WebSocket.
type Server struct {
	config    *Config
	cache     *state.Cache
	exec      Executor
	stale     StaleReporter
	tlsConfig *tls.Config
	upgrader  websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
}

// SetStaleReporter adds per-resource stale counts to GET /status.
func (s *Server) SetStaleReporter(r StaleReporter) {
	s.stale = r
}

// New creates a server reading from cache. exec may be nil, in which case
// the command endpoint answers 501.
func New(config *Config, cache *state.Cache, exec Executor) (*Server, error) {
	if config == nil {
		config = &Config{}
	}
	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	s := &Server{
		config:      config,
		cache:       cache,
		exec:        exec,
		tlsConfig:   tlsConfig,
		activeConns: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Consumers are local tools and dashboards, not browsers on
			// other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	return s, nil
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /snapshots", s.handleSnapshots)
	mux.HandleFunc("GET /snapshots/{resource}", s.handleSnapshot)
	mux.HandleFunc("GET /history/{resource}", s.handleHistory)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /commands/{name}", s.handleCommand)
	return withRequestLogging(mux)
}

// Addr returns the bound listen address once Start has been called.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens and serves until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	logging.Info("Event stream listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting requests and closes every WebSocket subscriber.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down event stream...")

	s.mu.Lock()
	srv := s.httpServer
	for id, conn := range s.activeConns {
		logging.Debug("Closing subscriber", zap.String("subscriber", id))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All subscribers closed")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}
	return err
}

// GetActiveConnections returns the number of connected WebSocket subscribers
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(id string, conn *websocket.Conn) {
	s.mu.Lock()
	s.activeConns[id] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.activeConns, id)
	s.mu.Unlock()
}
