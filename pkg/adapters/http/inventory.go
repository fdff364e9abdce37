package http

import (
	"net/http"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// ListAvailable handles GET /api/rooms/available.
func (s *Server) ListAvailable(w http.ResponseWriter, r *http.Request) {
	items, err := s.inventory.ListAvailable(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Reserve handles POST /api/rooms/{id}/reserve.
// Reserving an occupied room succeeds with status "already_reserved".
func (s *Server) Reserve(w http.ResponseWriter, r *http.Request) {
	res, err := s.inventory.Reserve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
