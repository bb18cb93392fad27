// Package apihttp serves the estimation REST API and the static frontend.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"estimator/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server wraps the gin engine and its listen address.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes API dependencies. Analyst and Engine are required;
// Audit may be nil (the estimates endpoints then answer 503).
type ServerConfig struct {
	Addr        string
	Analyst     FeatureAnalyst
	Engine      Estimator
	Audit       AuditLog
	Catalog     CatalogView
	CORSOrigins []string
	FrontendDir string
	MaxUploadMB int
	// Health flags reported by /api/v1/health.
	ProviderConfigured bool
	VectorConfigured   bool
}

// NewServer builds the HTTP server and mounts all routes.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Analyst == nil || cfg.Engine == nil {
		return nil, errors.New("http server requires analyst and engine")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), corsMiddleware(cfg.CORSOrigins))
	router.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20

	serveFrontend(router, cfg.FrontendDir)

	api := NewRouter(cfg)
	api.Register(router.Group("/api/v1"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx cancels, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func serveFrontend(router *gin.Engine, dir string) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return
	}
	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		logger.Warnf("frontend dir %s not found, serving API only", dir)
		return
	}
	router.Static("/static", dir)
	router.GET("/", func(c *gin.Context) {
		c.File(dir + "/index.html")
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		client := c.ClientIP()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), client, time.Since(start))
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
