// Package server exposes the companion over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"morvo/internal/companion"
	"morvo/internal/config"
	"morvo/internal/eventbus"
	"morvo/internal/security"
)

// Responder answers one chat turn.
type Responder interface {
	Handle(ctx context.Context, req companion.Request) (companion.Response, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are the collaborators of a Server. Only Companion is required.
type Options struct {
	Config     config.ServerConfig
	Companion  Responder
	Name       string // companion display name
	ErrorReply string // body text for unexpected failures
	Authorizer *security.Authorizer
	Store      Pinger
	Provider   string
	Channels   func() map[string]bool
	Logs       *eventbus.Ring
	Bus        *eventbus.Bus
}

// Server is the HTTP front of the companion.
type Server struct {
	opts    Options
	echo    *echo.Echo
	started time.Time
	wsConns atomic.Int64
}

// corsAllowHeaders are the request headers browser callers send.
var corsAllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// New builds the server and its routes.
func New(opts Options) *Server {
	s := &Server{opts: opts, started: time.Now()}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(allowAnyOrigin)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Printf("[server] panic on %s %s: %v", c.Request().Method, c.Path(), err)
			return err
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowHeaders: corsAllowHeaders,
	}))

	e.POST("/functions/v1/morvo", s.handleChat)
	e.POST("/api/v2/chat/message", s.handleChat)
	e.GET("/health", s.handleHealth)
	e.GET("/api/v2/logs", s.handleLogs)
	e.GET("/ws/:user_id", s.handleWebSocket)

	s.echo = e
	return s
}

// allowAnyOrigin sets the allow-origin header on every response, including
// requests without an Origin header and error responses. The CORS middleware
// only adds it when an Origin is sent.
func allowAnyOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		return next(c)
	}
}

// Handler returns the root http.Handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.opts.Config.Addr,
		Handler:      s.echo,
		ReadTimeout:  time.Duration(s.opts.Config.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.opts.Config.WriteTimeoutSecs) * time.Second,
	}
	log.Printf("[server] listening on %s", s.opts.Config.Addr)
	s.status("listening")
	err := s.echo.StartServer(srv)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.status("stopped")
	return s.echo.Shutdown(ctx)
}

func (s *Server) status(status string) {
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(eventbus.TopicStatusChange, eventbus.StatusEvent{Component: "server", Status: status})
	}
}
