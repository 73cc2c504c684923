// Package web serves the sprint review page and its JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/danielolaszy/sprintsplit/internal/config"
	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/internal/queue"
	"github.com/danielolaszy/sprintsplit/internal/review"
)

//go:embed templates/*.html
var templateFS embed.FS

// JobLister reads the split queue for operators.
type JobLister interface {
	List(ctx context.Context, status queue.Status, limit int) ([]queue.Job, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// Server is the HTTP surface of the review page.
type Server struct {
	cfg      config.ServerConfig
	service  *review.Service
	jobs     JobLister
	sessions *sessions
	engine   *gin.Engine
}

// NewServer builds the routes. jobs may be nil, in which case /api/jobs is not served.
func NewServer(cfg config.ServerConfig, service *review.Service, jobs JobLister) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"points": review.FormatPoints,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		service: service,
		jobs:    jobs,
		sessions: newSessions(func() *review.Controller {
			return review.NewController(service)
		}),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	if len(cfg.AllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	engine.SetHTMLTemplate(tmpl)

	engine.GET("/", s.page)
	engine.POST("/search", s.search)
	engine.POST("/split", s.split)
	engine.POST("/confirm", s.confirm)
	engine.POST("/close", s.close)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	{
		api.GET("/sprints", s.apiSprints)
		api.POST("/search", s.apiSearch)
		api.POST("/split", s.apiSplit)
		if jobs != nil {
			api.GET("/jobs", s.apiJobs)
		}
	}

	s.engine = engine
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("review page listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logging.Info("shutting down review page")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// requestLogger logs every request through the application logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logging.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
