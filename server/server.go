package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	cfg "github.com/go-kyugo/preify/config"
	"github.com/go-kyugo/preify/logger"
	"github.com/go-kyugo/preify/router"
)

// Options configures the created server.
type Options struct {
	// Config optionally carries the full application configuration. When nil
	// config.ConfigVar is used.
	Config  *cfg.Config
	Handler http.Handler // optional; if nil, an empty router is used
	// DefaultMiddlewares wrap Handler, first entry outermost.
	DefaultMiddlewares []func(http.Handler) http.Handler
	// Logger overrides the logger built from the config.
	Logger *logger.Logger
}

type Server struct {
	srv    *http.Server
	logger *logger.Logger
	Config *cfg.Config
}

func New(opts Options) (*Server, error) {
	c := opts.Config
	if c == nil {
		c = &cfg.ConfigVar
	}

	std := opts.Logger
	if std == nil {
		lvl := logger.ParseLevel(c.App.LogLevel)
		if c.App.Debug {
			lvl = logger.LevelDebug
		}
		std = logger.NewConsole(os.Stdout, lvl, c.App.Debug)
	}
	logger.SetStd(std)

	h := opts.Handler
	if h == nil {
		h = router.New().Handler()
	}
	for i := len(opts.DefaultMiddlewares) - 1; i >= 0; i-- {
		h = opts.DefaultMiddlewares[i](h)
	}

	srv := &http.Server{
		Addr:         c.Server.Addr(),
		Handler:      h,
		ReadTimeout:  time.Duration(c.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(c.Server.WriteTimeoutSeconds) * time.Second,
	}
	return &Server{srv: srv, logger: std, Config: c}, nil
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Handler is the fully wrapped handler served by s.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Server.Start", logger.Fields{"addr": ln.Addr().String()})
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests,
// including pre-handlers still waiting on a reply, until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Server.Shutdown", nil)
	return s.srv.Shutdown(ctx)
}
