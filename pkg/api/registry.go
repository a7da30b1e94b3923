package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	semver "github.com/Masterminds/semver/v3"
	"github.com/go-chi/chi/v5"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/auth"
	"github.com/raktar-project/raktar/pkg/metrics"
)

// maxPublishBody caps publish uploads; crates.io allows 10 MiB.
const maxPublishBody = 10 << 20

func (s *Server) publishCrate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.Write(w, apperr.Unauthorized("unauthorized"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBody+1))
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	if len(body) > maxPublishBody {
		apperr.Write(w, apperr.BadRequest("publish request too large"))
		return
	}

	resp, err := s.publisher.Publish(r.Context(), user, body)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) yank(w http.ResponseWriter, r *http.Request) {
	s.setYanked(w, r, true)
}

func (s *Server) unyank(w http.ResponseWriter, r *http.Request) {
	s.setYanked(w, r, false)
}

func (s *Server) setYanked(w http.ResponseWriter, r *http.Request, yanked bool) {
	crate := chi.URLParam(r, "crate")
	version := chi.URLParam(r, "version")
	if _, err := semver.StrictNewVersion(version); err != nil {
		apperr.Write(w, apperr.BadRequest(fmt.Sprintf("invalid version %q", version)))
		return
	}

	if err := s.repo.SetYanked(r.Context(), crate, version, yanked); err != nil {
		apperr.Write(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")
	version := chi.URLParam(r, "version")
	if _, err := semver.StrictNewVersion(version); err != nil {
		apperr.Write(w, apperr.BadRequest(fmt.Sprintf("invalid version %q", version)))
		return
	}

	data, err := s.archives.Get(r.Context(), crate, version)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	metrics.DownloadsTotal.Inc()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type ownersResponse struct {
	Users []ownerUser `json:"users"`
}

type ownerUser struct {
	ID    uint32 `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

func (s *Server) listOwners(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")

	owners, err := s.repo.ListOwners(r.Context(), crate)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	resp := ownersResponse{Users: make([]ownerUser, 0, len(owners))}
	for _, u := range owners {
		resp.Users = append(resp.Users, ownerUser{
			ID:    u.ID,
			Login: u.Login,
			Name:  u.GivenName + " " + u.FamilyName,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

type addOwnersRequest struct {
	Users []string `json:"users"`
}

func (s *Server) addOwners(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")

	var req addOwnersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.BadRequest("malformed owners request: "+err.Error()))
		return
	}
	if len(req.Users) == 0 {
		apperr.Write(w, apperr.BadRequest("no users given"))
		return
	}

	ids := make([]uint32, 0, len(req.Users))
	for _, login := range req.Users {
		user, err := s.repo.GetUserByLogin(r.Context(), login)
		if err != nil {
			apperr.Write(w, err)
			return
		}
		if user == nil {
			apperr.Write(w, apperr.BadRequest(fmt.Sprintf("unknown user %q", login)))
			return
		}
		ids = append(ids, user.ID)
	}

	if err := s.repo.AddOwners(r.Context(), crate, ids); err != nil {
		apperr.Write(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"ok":  true,
		"msg": fmt.Sprintf("added %d owner(s) to crate %s", len(ids), crate),
	})
}
