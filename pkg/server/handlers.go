package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/lacchain/trustlist/pkg/metrics"
	"github.com/lacchain/trustlist/pkg/registry"
	"github.com/lacchain/trustlist/pkg/response"
	"github.com/lacchain/trustlist/pkg/verify"
)

// maxVerifyBodyBytes bounds the verify-b45 request body, per spec §6
// ("limit 5 MiB").
const maxVerifyBodyBytes = 5 << 20

// handleIndex is a plain liveness route, added per the original's
// src/controllers/index.rs.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "ok"})
}

// handleVerifyB45 implements C7: decode and verify an HC1-prefixed Base45
// message carried as a plain-text request body.
func (s *Server) handleVerifyB45(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxVerifyBodyBytes+1))
	if err != nil {
		response.BadRequest(w, "failed to read request body")
		return
	}
	if len(body) > maxVerifyBodyBytes {
		response.BadRequest(w, "request body exceeds 5 MiB limit")
		return
	}
	if len(body) == 0 {
		metrics.VerificationsTotal.WithLabelValues("bad_input").Inc()
		response.BadRequest(w, "empty certificate body")
		return
	}

	result, err := s.Verifier.VerifyBase45(r.Context(), string(body))
	if err != nil {
		if errors.Is(err, verify.ErrBadInput) {
			metrics.VerificationsTotal.WithLabelValues("bad_input").Inc()
			response.BadRequest(w, err.Error())
			return
		}
		s.Logger.Printf("verify-b45: internal error: %v", err)
		metrics.VerificationsTotal.WithLabelValues("bad_input").Inc()
		response.InternalError(w, "internal error verifying certificate")
		return
	}

	outcome := "invalid"
	if result.IsValid {
		outcome = "valid"
	}
	metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	response.Success(w, result)
}

// getAllResponse is the wire shape of a paginated public-key listing.
type getAllResponse struct {
	Page           int                 `json:"page"`
	ResultsPerPage int                 `json:"results_per_page"`
	NumPages       int                 `json:"num_pages"`
	Keys           []*registry.PublicKey `json:"keys"`
}

// handleGetAll returns paginated public keys for the configured "exposed"
// Trusted Registry.
func (s *Server) handleGetAll(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		response.BadRequest(w, "page must be a positive integer")
		return
	}
	size, err := strconv.Atoi(r.URL.Query().Get("results_per_page"))
	if err != nil || size < 1 {
		response.BadRequest(w, "results_per_page must be a positive integer")
		return
	}

	exposed, ok := s.exposedRegistry()
	if !ok {
		response.InternalError(w, "no exposed trusted registry configured")
		return
	}

	keys, numPages, err := s.Repos.PublicKeys.PaginateByPublicDirectory(r.Context(), exposed.PDAddress.Hex(), exposed.PDChainID, page, size)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidPage) {
			response.BadRequest(w, "page must be a positive integer")
			return
		}
		s.Logger.Printf("get-all: %v", err)
		response.InternalError(w, "internal error listing public keys")
		return
	}

	response.Success(w, getAllResponse{
		Page:           page,
		ResultsPerPage: size,
		NumPages:       numPages,
		Keys:           keys,
	})
}

// handlePublicKeyDetail looks up a single public key by its content hash,
// added per the original's src/controllers/public_key_controller.rs.
func (s *Server) handlePublicKeyDetail(w http.ResponseWriter, r *http.Request) {
	contentHash := r.PathValue("content_hash")
	if contentHash == "" {
		response.BadRequest(w, "content_hash is required")
		return
	}

	key, err := s.Repos.PublicKeys.FindByContentHash(r.Context(), contentHash)
	if err != nil {
		if errors.Is(err, registry.ErrPublicKeyNotFound) {
			response.BadRequest(w, "public key not found")
			return
		}
		s.Logger.Printf("public-key detail: %v", err)
		response.InternalError(w, "internal error looking up public key")
		return
	}

	response.Success(w, key)
}
