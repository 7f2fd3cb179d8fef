// Package server exposes the dashboard over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/panel"
	"go.uber.org/zap"
)

type Server struct {
	service  *panel.Service
	sessions *panel.Sessions
	verifier *identity.Verifier
	logger   *zap.Logger
	engine   *gin.Engine
}

func New(service *panel.Service, sessions *panel.Sessions, verifier *identity.Verifier, logger *zap.Logger) *Server {
	s := &Server{
		service:  service,
		sessions: sessions,
		verifier: verifier,
		logger:   logger,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(s.operatorAuth())
	{
		api.GET("/bots", s.listBots)
		api.POST("/bots", s.createBot)
		api.PUT("/bots/:id/config", s.saveSettings)
		api.POST("/bots/:id/commands", s.sendCommand)
		api.POST("/bots/:id/messages", s.sendMessage)
		api.GET("/summary", s.summary)
		api.POST("/refresh", s.refresh)
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
