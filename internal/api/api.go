package api

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/curaious/synergy/internal/config"
	"github.com/curaious/synergy/internal/migrations"
	"github.com/curaious/synergy/internal/pubsub"
	"github.com/curaious/synergy/internal/ratelimit"
	"github.com/curaious/synergy/internal/services"
)

// Server is the HTTP server for the project-management API
type Server struct {
	srv          *fasthttp.Server
	addr         string
	conf         *config.Config
	services     *services.Services
	pubsub       *pubsub.PubSub
	limitStorage ratelimit.Storage
	authLimiter  *ratelimit.Limiter
}

// New migrates the database and wires services, the activity listener and
// the login rate limiter.
func New(conf *config.Config) *Server {
	svc := services.NewServices(conf)

	m, err := migrations.NewMigrator(svc.DB)
	if err != nil {
		panic("unable to create migrator: " + err.Error())
	}

	err = m.Up(0)
	if err != nil {
		panic("unable to run migrations: " + err.Error())
	}

	ps := pubsub.NewPubSub(conf)
	if err := ps.Start(); err != nil {
		slog.Error("Unable to start activity listener, streaming disabled", slog.Any("error", err))
		ps = nil
	}

	storage := ratelimit.NewStorage(context.Background(), conf)
	limiter, err := ratelimit.NewLimiter(storage, ratelimit.RateLimit{
		Limit: conf.AUTH_RATE_LIMIT,
		Unit:  conf.AUTH_RATE_LIMIT_UNIT,
	})
	if err != nil {
		panic("invalid auth rate limit: " + err.Error())
	}

	s := &Server{
		srv: &fasthttp.Server{
			// SSE responses are long lived
			IdleTimeout: 2 * time.Minute,
		},
		addr:         conf.SERVER_ADDR,
		conf:         conf,
		services:     svc,
		pubsub:       ps,
		limitStorage: storage,
		authLimiter:  limiter,
	}

	s.srv.Handler = s.initNewRoutes()

	return s
}

// Start the rest server
func (s *Server) Start() {
	slog.Info("Starting REST server...", slog.String("addr", s.addr))
	go func() {
		if err := s.srv.ListenAndServe(s.addr); err != nil {
			slog.Error("Server shutdown", slog.Any("error", err))
		}
	}()
	slog.Info("REST server started!")

	// Listen for OS interrupts
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block till we receive an interrupt
	<-c
	slog.Info("Received interrupt...")

	// Create a timeout
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s.shutdown(ctx)
}

// Shutdown shuts down the rest server
func (s *Server) shutdown(ctx context.Context) {
	slog.Info("Gracefully shutting down REST server...")
	if err := s.srv.ShutdownWithContext(ctx); err != nil {
		slog.Error("Failed to shutdown the server", slog.Any("error", err))
	}

	if s.pubsub != nil {
		s.pubsub.Stop()
	}

	switch storage := s.limitStorage.(type) {
	case *ratelimit.InMemoryRateLimiterStorage:
		storage.Stop()
	case *ratelimit.RedisRateLimiterStorage:
		_ = storage.Close()
	}

	if err := s.services.DB.Close(); err != nil {
		slog.Error("Failed to close database pool", slog.Any("error", err))
	}
	slog.Info("REST server shutdown!")
}
