// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the bot's health and status over a small gin
// server. It is operator-facing only; the bot itself never serves user
// traffic over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/mobius-labs/mobius/internal/config"
	"github.com/mobius-labs/mobius/internal/provider"
	"github.com/mobius-labs/mobius/internal/ratelimit"
)

// Server is the status/health HTTP server.
type Server struct {
	cfg     *config.Config
	limiter *ratelimit.Limiter
	manager *provider.Manager
	started time.Time
	http    *http.Server
}

// NewServer builds the server; Start actually binds.
func NewServer(cfg *config.Config, limiter *ratelimit.Limiter, manager *provider.Manager) *Server {
	return &Server{cfg: cfg, limiter: limiter, manager: manager, started: time.Now()}
}

// engine builds the gin router. Split out so tests can drive the
// handlers without binding a port.
func (s *Server) engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealthz)

	protected := engine.Group("/v1", s.requireSecretKey)
	protected.GET("/status", s.handleStatus)
	protected.GET("/limits", s.handleLimits)

	return engine
}

// Start runs the server in a background goroutine.
func (s *Server) Start() {
	engine := s.engine()
	addr := fmt.Sprintf("%s:%d", s.cfg.StatusAPI.Host, s.cfg.StatusAPI.Port)
	s.http = &http.Server{Addr: addr, Handler: engine}
	go func() {
		log.Infof("status api listening on %s", addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("status api: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) requireSecretKey(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !s.cfg.CheckSecretKey(strings.TrimSpace(token)) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management key"})
		return
	}
	c.Next()
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime_seconds": int(time.Since(s.started).Seconds())})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"providers":      s.manager.StatsSnapshot(),
		"rate_limits":    s.limiter.Snapshot(),
	})
}

func (s *Server) handleLimits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": provider.Models})
}
