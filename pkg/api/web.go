package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/auth"
	"github.com/raktar-project/raktar/pkg/repository"
	"github.com/raktar-project/raktar/pkg/types"
)

const defaultCrateListLimit = 10

type crateListResponse struct {
	Crates []types.CrateSummary `json:"crates"`
}

func (s *Server) webListCrates(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")

	limit := defaultCrateListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			apperr.Write(w, apperr.BadRequest(fmt.Sprintf("invalid limit %q", raw)))
			return
		}
		if n > repository.MaxCrateListLimit {
			apperr.Write(w, apperr.BadRequest(fmt.Sprintf("limit must be at most %d", repository.MaxCrateListLimit)))
			return
		}
		limit = n
	}

	crates, err := s.repo.GetAllCrateDetails(r.Context(), filter, limit)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if crates == nil {
		crates = []types.CrateSummary{}
	}
	respondJSON(w, http.StatusOK, crateListResponse{Crates: crates})
}

func (s *Server) webGetCrate(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")

	summary, err := s.repo.GetCrateSummary(r.Context(), crate)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if summary == nil {
		apperr.Write(w, apperr.NonExistentPackageInfo(crate))
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

type versionListResponse struct {
	Versions []string `json:"versions"`
}

// webListVersions returns the published versions, newest first in
// semver order.
func (s *Server) webListVersions(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")

	versions, err := s.repo.ListCrateVersions(r.Context(), crate)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[j].LessThan(versions[i])
	})

	resp := versionListResponse{Versions: make([]string, 0, len(versions))}
	for _, v := range versions {
		resp.Versions = append(resp.Versions, v.String())
	}
	respondJSON(w, http.StatusOK, resp)
}

// webGetMetadata serves the stored publish payload. Without an explicit
// version query parameter the crate's highest version is served.
func (s *Server) webGetMetadata(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")

	version := r.URL.Query().Get("version")
	if version == "" {
		summary, err := s.repo.GetCrateSummary(r.Context(), crate)
		if err != nil {
			apperr.Write(w, err)
			return
		}
		if summary == nil {
			apperr.Write(w, apperr.NonExistentPackageInfo(crate))
			return
		}
		version = summary.MaxVersion
	}

	metadata, err := s.repo.GetCrateMetadata(r.Context(), crate, version)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if metadata == nil {
		apperr.Write(w, apperr.NonExistentCrateVersion(crate, version))
		return
	}
	respondJSON(w, http.StatusOK, metadata)
}

type tokenListResponse struct {
	Tokens []types.Token `json:"tokens"`
}

func (s *Server) webListTokens(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.Write(w, apperr.Unauthorized("unauthorized"))
		return
	}

	tokens, err := s.repo.ListTokens(r.Context(), user.ID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if tokens == nil {
		tokens = []types.Token{}
	}
	respondJSON(w, http.StatusOK, tokenListResponse{Tokens: tokens})
}

type createTokenRequest struct {
	Name string `json:"name"`
}

type createTokenResponse struct {
	Token types.Token `json:"token"`
	Key   string      `json:"key"`
}

// webCreateToken mints a credential. The plaintext key appears in this
// response and nowhere else.
func (s *Server) webCreateToken(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.Write(w, apperr.Unauthorized("unauthorized"))
		return
	}

	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.BadRequest("malformed token request: "+err.Error()))
		return
	}
	if req.Name == "" {
		apperr.Write(w, apperr.BadRequest("token name must not be empty"))
		return
	}

	key, err := auth.GenerateToken()
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}

	token, err := s.repo.StoreToken(r.Context(), []byte(key), req.Name, user.ID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respondJSON(w, http.StatusOK, createTokenResponse{Token: *token, Key: key})
}

func (s *Server) webDeleteToken(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.Write(w, apperr.Unauthorized("unauthorized"))
		return
	}

	tokenID := chi.URLParam(r, "tokenID")
	if err := s.repo.DeleteToken(r.Context(), user.ID, tokenID); err != nil {
		apperr.Write(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token_id": tokenID})
}

type userListResponse struct {
	Users []types.User `json:"users"`
}

func (s *Server) webListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.GetUsers(r.Context())
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if users == nil {
		users = []types.User{}
	}
	respondJSON(w, http.StatusOK, userListResponse{Users: users})
}

func (s *Server) webGetUser(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		apperr.Write(w, apperr.BadRequest(fmt.Sprintf("invalid user id %q", raw)))
		return
	}

	user, err := s.repo.GetUserByID(r.Context(), uint32(id))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if user == nil {
		apperr.Write(w, apperr.BadRequest(fmt.Sprintf("no user with id %d", id)))
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// webSyncUser is the provisioning hook called by the identity provider
// on login: it upserts the user profile and returns the registry id the
// provider embeds in its tokens.
func (s *Server) webSyncUser(w http.ResponseWriter, r *http.Request) {
	var data types.UserData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		apperr.Write(w, apperr.BadRequest("malformed user sync request: "+err.Error()))
		return
	}
	if data.Login == "" {
		apperr.Write(w, apperr.BadRequest("login must not be empty"))
		return
	}

	user, err := s.repo.UpdateOrCreateUser(r.Context(), data)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
