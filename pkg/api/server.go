package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/raktar-project/raktar/pkg/archive"
	"github.com/raktar-project/raktar/pkg/auth"
	"github.com/raktar-project/raktar/pkg/config"
	"github.com/raktar-project/raktar/pkg/log"
	"github.com/raktar-project/raktar/pkg/metrics"
	"github.com/raktar-project/raktar/pkg/publish"
	"github.com/raktar-project/raktar/pkg/repository"
)

// Options tune server behavior beyond the main configuration.
type Options struct {
	// AllowAnonymousWeb lets web API requests through without a JWT,
	// for local development.
	AllowAnonymousWeb bool
}

// Server is the registry HTTP server.
type Server struct {
	cfg       config.Config
	repo      repository.Repository
	archives  archive.Store
	publisher *publish.Publisher
	router    chi.Router
	http      *http.Server
	logger    zerolog.Logger
}

// NewServer wires the HTTP surface over the given repository and
// archive store.
func NewServer(cfg config.Config, repo repository.Repository, archives archive.Store, opts Options) *Server {
	s := &Server{
		cfg:       cfg,
		repo:      repo,
		archives:  archives,
		publisher: publish.NewPublisher(repo, archives),
		logger:    log.WithComponent("api"),
	}
	s.router = s.routes(opts)
	return s
}

func (s *Server) routes(opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(requestMetrics)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/config.json", s.configJSON)

	// Cargo registry protocol, bearer-token gated.
	r.Group(func(r chi.Router) {
		r.Use(auth.TokenAuthenticator(s.repo))

		r.Put("/api/v1/crates/new", s.publishCrate)
		r.Delete("/api/v1/crates/{crate}/{version}/yank", s.yank)
		r.Put("/api/v1/crates/{crate}/{version}/unyank", s.unyank)
		r.Get("/api/v1/crates/{crate}/{version}/download", s.download)
		r.Get("/api/v1/crates/{crate}/owners", s.listOwners)
		r.Put("/api/v1/crates/{crate}/owners", s.addOwners)

		r.Get("/1/{crate}", s.indexOneLetter)
		r.Get("/2/{crate}", s.indexTwoLetter)
		r.Get("/3/{prefix}/{crate}", s.indexThreeLetter)
		r.Get("/{first}/{second}/{crate}", s.indexLongName)
	})

	// Web API, JWT gated.
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.JWTAuthenticator(opts.AllowAnonymousWeb))

		r.Get("/crates", s.webListCrates)
		r.Get("/crates/{crate}", s.webGetCrate)
		r.Get("/crates/{crate}/versions", s.webListVersions)
		r.Get("/crates/{crate}/metadata", s.webGetMetadata)

		r.Get("/tokens", s.webListTokens)
		r.Post("/tokens", s.webCreateToken)
		r.Delete("/tokens/{tokenID}", s.webDeleteToken)

		r.Get("/users", s.webListUsers)
		r.Get("/users/{id}", s.webGetUser)
		r.Put("/users/sync", s.webSyncUser)
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s.router,
		ReadTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("registry listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registryConfig struct {
	DL           string `json:"dl"`
	API          string `json:"api"`
	AuthRequired bool   `json:"auth-required"`
}

func (s *Server) configJSON(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, registryConfig{
		DL:           "https://" + s.cfg.DomainName + "/api/v1/crates",
		API:          "https://" + s.cfg.DomainName,
		AuthRequired: true,
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
