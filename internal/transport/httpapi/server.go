// Package httpapi is the operator-facing HTTP surface: commands, status,
// health, metrics and the live event feed.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/pkg/log"
)

type Config struct {
	Addr        string
	CORSOrigins []string
	Debug       bool
}

// Route mounts an extra handler, such as the extension bridge endpoint.
type Route struct {
	Path    string
	Handler http.Handler
}

type Server struct {
	logger    *zerolog.Logger
	router    core.CmdRouter
	gatherer  prometheus.Gatherer
	feed      *Feed
	engine    *gin.Engine
	http      *http.Server
	startedAt time.Time
}

func New(ctx context.Context, cfg Config, router core.CmdRouter, gatherer prometheus.Gatherer, feed *Feed, routes ...Route) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))

	s := &Server{
		logger:    log.FromCtx(ctx),
		router:    router,
		gatherer:  gatherer,
		feed:      feed,
		engine:    engine,
		startedAt: time.Now(),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes(routes)
	return s
}

func (s *Server) setupRoutes(routes []Route) {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.POST("/commands", s.handleCommand)
	api.GET("/commands", s.handleListCommands)
	if s.feed != nil {
		api.GET("/events", s.feed.Handle)
	}

	if s.gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	for _, r := range routes {
		s.engine.GET(r.Path, gin.WrapH(r.Handler))
	}
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.http.Addr).Msg("http api listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.feed != nil {
		s.feed.Close()
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	res := s.router.Execute(s.requestCtx(c), core.CommandRequest{Type: "getStatus"})
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCommand(c *gin.Context) {
	var req core.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, core.CommandResult{Status: "error", Message: err.Error()})
		return
	}
	if req.Type == "" {
		c.JSON(http.StatusBadRequest, core.CommandResult{Status: "error", Message: "command type is required"})
		return
	}

	c.JSON(http.StatusOK, s.router.Execute(s.requestCtx(c), req))
}

func (s *Server) requestCtx(c *gin.Context) context.Context {
	return log.WithComponent(s.logger.WithContext(c.Request.Context()), "httpapi")
}

func (s *Server) handleListCommands(c *gin.Context) {
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	cmds := s.router.ListCommands()
	out := make([]entry, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, entry{Name: cmd.Name(), Description: cmd.Description()})
	}
	c.JSON(http.StatusOK, out)
}
