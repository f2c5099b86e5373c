// Package server exposes number lookups over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chifron/chifron/internal/cache"
	"github.com/chifron/chifron/internal/config"
	"github.com/chifron/chifron/internal/numbers"
)

// NumberService answers number lookups.
type NumberService interface {
	GetNumberInfo(ctx context.Context, n int) (numbers.Result, error)
}

// ArtifactStore gives read access to stored audio.
type ArtifactStore interface {
	LookupFile(name string) (cache.Entry, error)
	Stats() cache.Stats
}

// Server is the HTTP boundary.
type Server struct {
	cfg     *config.Config
	numbers NumberService
	store   ArtifactStore
	echo    *echo.Echo
	handler http.Handler
}

// New builds the router. Routes:
//
//	GET {base}/health                 public
//	GET {base}/audio/number/:number   bearer
//	GET {base}/audio/:filename        bearer
//	GET {base}/cache/stats            bearer
//	GET {static}/{audio}/:filename    public, when static.url_path is set
func New(cfg *config.Config, svc NumberService, store ArtifactStore) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		numbers: svc,
		store:   store,
		echo:    echo.New(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())

	// The limiter runs first so rejected keys are throttled too.
	var protected []echo.MiddlewareFunc
	if rl := cfg.Server.RateLimit; rl.RPS > 0 {
		protected = append(protected, NewRateLimiter(rl.RPS, rl.Burst).Middleware())
	}
	protected = append(protected, bearerAuth(cfg.API.AccessKeys))
	if len(cfg.API.AccessKeys) == 0 {
		log.Warn("No access keys configured, the API is open to everyone")
	}

	base := cfg.API.BasePath
	e.GET(base+"/health", s.GetHealth)
	e.GET(base+"/audio/number/:number", s.GetNumber, protected...)
	e.GET(base+"/audio/:filename", s.GetAudio, protected...)
	e.GET(base+"/cache/stats", s.GetCacheStats, protected...)

	if prefix := cfg.AudioURLPath(); prefix != "" {
		e.GET(prefix+"/:filename", s.GetAudio)
	}

	// Audio is already compressed; gzhttp skips audio content types.
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(256))
	if err != nil {
		return nil, fmt.Errorf("unable to create gzip wrapper: %w", err)
	}
	s.handler = wrap(e)

	return s, nil
}

// Handler returns the complete HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is done, then shuts down gracefully,
// letting in-flight lookups finish within server.shutdown_timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.handler,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", srv.Addr, "base", s.cfg.API.BasePath, "static", s.cfg.AudioURLPath())
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

	log.Info("Shutting down", "timeout", s.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
