// Package web serves the monitor's status page and control API over HTTP.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/door-monitor/internal/history"
	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/status"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// Controller is the monitor surface the HTTP layer drives.
type Controller interface {
	Link(ctx context.Context, subscriberID, channelID string) error
	Health(subscriberID string, now time.Time) status.Health
	HistoryPage(index int) ([]history.Point, int)
	View(now time.Time) status.View
	Title() string
	Start(ctx context.Context) error
	Stop() error
}

// Server serves the status page and API over HTTP.
type Server struct {
	httpServer *http.Server
	ctl        Controller
	log        *logger.Logger
	now        func() time.Time

	gatherer   prometheus.Gatherer
	logFile    string
	wsInterval time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogFile serves the tail of path on /api/logs.
func WithLogFile(path string) Option {
	return func(s *Server) { s.logFile = path }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server for addr backed by ctl.
func New(addr string, ctl Controller, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		ctl:        ctl,
		log:        log,
		now:        time.Now,
		wsInterval: defaultWSInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)
	router.GET("/ws", s.handleWS)

	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.POST("/link", s.handleLink)
		api.GET("/status", s.handleStatus)
		api.GET("/history", s.handleHistory)
		api.POST("/start", s.handleStart)
		api.POST("/stop", s.handleStop)
		api.GET("/logs", s.handleLogs)
	}
	return router
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	now := s.now()
	view := s.ctl.View(now)
	recent, _ := s.ctl.HistoryPage(0)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	err := renderHTML(c.Writer, indexData{
		View:   view,
		Title:  s.ctl.Title(),
		Age:    view.Age(now),
		Recent: recent,
	})
	if err != nil {
		s.log.Errorw("render index", "err", err)
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.ctl.View(s.now())))
}
