// Package server is the composition root: it builds every dependency from
// config.Config, mounts the routes, and runs the HTTP server until a
// shutdown signal arrives.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  → sqlite.DB, anilist.Client, auth.DiscordProvider
//	  → service.LinkService, service.AuthService
//	  → handler.*Handler
//	  → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/anilink/internal/anilist"
	"github.com/sakif/anilink/internal/auth"
	"github.com/sakif/anilink/internal/config"
	"github.com/sakif/anilink/internal/handler"
	"github.com/sakif/anilink/internal/middleware"
	sqliteRepo "github.com/sakif/anilink/internal/repository/sqlite"
	"github.com/sakif/anilink/internal/service"
)

// Server owns the router and the database handle. The database is closed
// when Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires every route.
//
// Missing Discord credentials are not fatal: the server starts and
// /api/token is simply not registered.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and handlers.
//
// ROUTES:
//
//	GET  /                        → "Hello world!"
//	POST /echo                    → request body, unchanged
//	GET  /hey                     → fixed greeting
//	GET  /healthz                 → readiness (pings the store)
//	POST /api/links               → verify + link a username
//	GET  /api/links/{externalID}  → current link for an account
//	POST /api/token               → Discord code exchange (when configured)
//
// MIDDLEWARE ORDER:
//  1. RequestID: every later log line can carry the id
//  2. RealIP: rewrites RemoteAddr from X-Forwarded-For / X-Real-IP
//  3. Logger: sees the final status, including 500s from Recoverer
//  4. Recoverer: turns a panic into a 500
func (s *Server) setupRoutes() error {
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	verifier := anilist.NewClient(s.config.AniList.Endpoint, s.config.AniList.Timeout)
	linkService := service.NewLinkService(verifier, s.db, s.logger)

	greetingHandler := handler.NewGreetingHandler(s.logger)
	healthHandler := handler.NewHealthHandler(linkService, s.logger)
	linkHandler := handler.NewLinkHandler(linkService, s.logger)

	s.router.Get("/", greetingHandler.HandleHello)
	s.router.Post("/echo", greetingHandler.HandleEcho)
	s.router.Get("/hey", greetingHandler.HandleHey)
	s.router.Get("/healthz", healthHandler.HandleHealth)

	var tokenHandler *handler.TokenHandler
	if s.config.Discord.Enabled() {
		discord, err := auth.NewDiscordProvider(
			s.config.Discord.ClientID,
			s.config.Discord.ClientSecret,
			s.config.Discord.TokenURL,
			s.config.Discord.Timeout,
		)
		if err != nil {
			return fmt.Errorf("creating discord provider: %w", err)
		}
		tokenHandler = handler.NewTokenHandler(service.NewAuthService(discord, s.logger), s.logger)
	} else {
		s.logger.Warn("DISCORD_CLIENT_ID or DISCORD_CLIENT_SECRET not set, /api/token is disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/links", linkHandler.HandleLink)
		r.Get("/links/{externalID}", linkHandler.HandleLookup)
		if tokenHandler != nil {
			r.Post("/token", tokenHandler.HandleToken)
		}
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to ShutdownTimeout and closes the database.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("anilist", s.config.AniList.Endpoint),
			slog.Bool("discord", s.config.Discord.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// EnsureDataDir creates the directory holding the database file.
func EnsureDataDir(dbPath string) error {
	if dbPath == sqliteRepo.MemoryPath {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
