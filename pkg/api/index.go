package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/metrics"
)

// The sparse index mirrors cargo's layout: one-letter names under /1,
// two-letter under /2, three-letter under /3/{first letter}, and
// everything else under the first-two/next-two letter pair. The path
// prefix is authoritative; a crate requested under the wrong prefix is
// a malformed request, not a miss.

func (s *Server) indexOneLetter(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")
	if len(crate) != 1 {
		apperr.Write(w, badIndexPath(crate))
		return
	}
	s.serveIndex(w, r, crate)
}

func (s *Server) indexTwoLetter(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")
	if len(crate) != 2 {
		apperr.Write(w, badIndexPath(crate))
		return
	}
	s.serveIndex(w, r, crate)
}

func (s *Server) indexThreeLetter(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")
	prefix := chi.URLParam(r, "prefix")
	if len(crate) != 3 || prefix != crate[:1] {
		apperr.Write(w, badIndexPath(crate))
		return
	}
	s.serveIndex(w, r, crate)
}

func (s *Server) indexLongName(w http.ResponseWriter, r *http.Request) {
	crate := chi.URLParam(r, "crate")
	first := chi.URLParam(r, "first")
	second := chi.URLParam(r, "second")
	if len(crate) < 4 || first != crate[:2] || second != crate[2:4] {
		apperr.Write(w, badIndexPath(crate))
		return
	}
	s.serveIndex(w, r, crate)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request, crate string) {
	doc, err := s.repo.GetPackageInfo(r.Context(), crate)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	metrics.IndexLookupsTotal.Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func badIndexPath(crate string) error {
	return apperr.BadRequest(fmt.Sprintf("crate %q does not belong under this index path", crate))
}
