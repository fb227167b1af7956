// HTTP server initialization and lifecycle management.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/matiasleandrokruk/askbot/internal/api"
	"github.com/matiasleandrokruk/askbot/internal/infra/kandinsky"
)

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default HTTP server configuration.
// WriteTimeout covers a full image job: 60 polls at 3s plus two completions.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            5000,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server wraps the HTTP server and the background image job consumers.
type Server struct {
	config Config
	http   *http.Server
	images *kandinsky.Client
	jobs   *kandinsky.Monitor
}

// NewServer creates a new HTTP server over the wired services.
func NewServer(deps api.Deps, config Config) *Server {
	router := api.NewRouter(deps)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           router,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return &Server{
		config: config,
		http:   httpServer,
		images: deps.Images,
		jobs:   deps.Jobs,
	}
}

// Addr is the listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Run serves until ctx is canceled, then drains in-flight requests for at most
// ShutdownTimeout. A listen error stops everything and is returned.
func (s *Server) Run(ctx context.Context) error {
	eg, groupCtx := errgroup.WithContext(ctx)

	if s.jobs != nil {
		eg.Go(func() error {
			s.jobs.Run(groupCtx)
			return nil
		})
	}
	if s.images != nil {
		// Pipeline lookup must not delay serving; failure is retried on first use.
		eg.Go(func() error {
			s.images.Init(groupCtx)
			return nil
		})
	}

	eg.Go(func() error {
		log.Info().Str("addr", s.http.Addr).Msg("starting HTTP server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		return s.Shutdown(context.Background())
	})

	return eg.Wait()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}
	log.Info().Msg("server shutdown complete")
	return nil
}
