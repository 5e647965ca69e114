package observability

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danmuck/loralink/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const shutdownGrace = 2 * time.Second

// StatusServer serves health, Prometheus metrics and the most recently
// published session snapshot. The session loop publishes; handlers only read.
type StatusServer struct {
	Node     string
	Addr     string
	Appeared time.Time

	router *gin.Engine
	latest atomic.Pointer[session.Snapshot]
}

func NewStatusServer(node, addr string) *StatusServer {
	RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Logger, node))
	r.Use(RequestMetricsMiddleware(node))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &StatusServer{
		Node:     node,
		Addr:     addr,
		Appeared: time.Now(),
		router:   r,
	}
	s.registerRoutes()
	return s
}

// Publish replaces the snapshot served on /link.
func (s *StatusServer) Publish(snap session.Snapshot) {
	s.latest.Store(&snap)
}

func (s *StatusServer) Handler() http.Handler {
	return s.router
}

func (s *StatusServer) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.Appeared).String(),
			"node":   s.Node,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.latest.Load() != nil
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":  ready,
			"uptime": time.Since(s.Appeared).String(),
			"node":   s.Node,
		})
	})

	s.router.GET("/link", func(c *gin.Context) {
		snap := s.latest.Load()
		if snap == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot published yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"node":     s.Node,
			"snapshot": snap,
		})
	})
}

// Serve listens on Addr until ctx is done.
func (s *StatusServer) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Str("addr", s.Addr).Msg("status server shutdown")
		}
	}()
	log.Info().Str("node", s.Node).Str("addr", s.Addr).Msg("status server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
