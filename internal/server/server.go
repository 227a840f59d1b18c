// Package server exposes the council pipeline over HTTP: a synchronous and a
// streaming chat endpoint for the WordPress widget, plus the conversation
// endpoints used by the council UI.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thailaw-council/internal/council"
	"thailaw-council/internal/storage"
	"thailaw-council/pkg/logger"
)

// Pipeline is the slice of the council orchestrator the transport needs.
type Pipeline interface {
	Run(ctx context.Context, query string, emit func(council.Event)) (*council.Result, error)
	GenerateTitle(ctx context.Context, userQuery string) (string, error)
	Config() council.Config
}

// Config holds transport settings.
type Config struct {
	// APIKey authenticates the WordPress chat endpoints via X-API-Key.
	// Empty disables validation (development mode).
	APIKey string

	// AllowedOrigins is the CORS allow-list. Empty means localhost-only
	// development mode.
	AllowedOrigins []string

	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64
}

// Server wires handlers to the store and pipeline.
type Server struct {
	cfg      Config
	store    *storage.Store
	pipeline Pipeline
}

// New creates a Server.
func New(cfg Config, store *storage.Store, pipeline Pipeline) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{cfg: cfg, store: store, pipeline: pipeline}
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())

	// Request size limit
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		c.Next()
	})

	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  s.allowOrigin,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-API-Key"},
		AllowCredentials: true,
	}))

	router.GET("/", s.healthCheck)
	router.GET("/health", s.healthCheck)

	chat := router.Group("/api/chat", apiKeyRequired(s.cfg.APIKey))
	chat.POST("", s.chatHandler)
	chat.POST("/stream", s.chatStreamHandler)

	router.GET("/api/conversations", s.listConversationsHandler)
	router.POST("/api/conversations", s.createConversationHandler)
	router.GET("/api/conversations/:id", s.getConversationHandler)
	router.POST("/api/conversations/:id/message", s.sendMessageHandler)
	router.POST("/api/conversations/:id/message/stream", s.sendMessageStreamHandler)

	return router
}

// allowOrigin validates a request origin against the configured allow-list,
// or any localhost origin when no list is configured.
func (s *Server) allowOrigin(origin string) bool {
	if len(s.cfg.AllowedOrigins) > 0 {
		for _, allowed := range s.cfg.AllowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	}
	return strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1")
}

// accessLog logs one line per request through zap.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// healthCheck returns service status.
// GET / and GET /health
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ThaiLawOnline Chatbot API",
	})
}
