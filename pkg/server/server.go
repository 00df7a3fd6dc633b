// Package server implements the HTTP surface: the verification endpoint
// (C7), a paginated public-key listing, a public-key detail lookup, and a
// plain liveness route, each wrapped in the response package's tagged
// envelope.
package server

import (
	"log"
	"net/http"

	"github.com/lacchain/trustlist/pkg/config"
	"github.com/lacchain/trustlist/pkg/registry"
	"github.com/lacchain/trustlist/pkg/verify"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Repos    *registry.Repositories
	Verifier *verify.Verifier
	Config   *config.Config
	Logger   *log.Logger

	mux *http.ServeMux
}

// New builds a Server with its routes registered.
func New(repos *registry.Repositories, verifier *verify.Verifier, cfg *config.Config, logger *log.Logger) *Server {
	s := &Server{Repos: repos, Verifier: verifier, Config: cfg, Logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /", s.handleIndex)
	s.mux.HandleFunc("POST /api/v1/certificates/verify-b45", s.handleVerifyB45)
	s.mux.HandleFunc("GET /api/v1/certificates/get-all", s.handleGetAll)
	s.mux.HandleFunc("GET /api/v1/public-keys/{content_hash}", s.handlePublicKeyDetail)
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// exposedRegistry returns the Trusted Registry named by
// TRUSTED_REGISTRIES_INDEX_PUBLIC_KEYS_TO_EXPOSE.
func (s *Server) exposedRegistry() (config.TrustedRegistry, bool) {
	for _, r := range s.Config.TrustedRegistries {
		if r.Index == s.Config.ExposedRegistryIndex {
			return r, true
		}
	}
	return config.TrustedRegistry{}, false
}
