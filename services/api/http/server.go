package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/nuclear-outages/services/api/cache"
	"github.com/02loveslollipop/nuclear-outages/services/api/config"
	"github.com/02loveslollipop/nuclear-outages/services/api/refresh"
)

// Refresher rebuilds the modeled tables and swaps them in through target.
type Refresher interface {
	Refresh(ctx context.Context, target refresh.Swapper, opts refresh.Options) (refresh.Payload, error)
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg       config.Config
	cache     *cache.Store
	refresher Refresher
	engine    *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store *cache.Store, refresher Refresher) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, cache: store, refresher: refresher, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/")
	if s.cfg.BearerToken != "" {
		api.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}
	api.GET("/data", s.handleData)
	api.POST("/refresh", s.handleRefresh)
}

// bearerAuthMiddleware rejects a missing or non-bearer header with 401 and a
// wrong token with 403.
func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid token"})
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
