package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/certforge/internal/core"
	"github.com/JonMunkholm/certforge/internal/logging"
)

// maxLayoutBody bounds PUT /api/layouts/{key} bodies.
const maxLayoutBody = 64 << 10

// handleListLayouts returns every stored layout.
func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	entries, err := s.layouts.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetLayout returns a single stored layout.
func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	entry, err := s.layouts.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleSaveLayout creates or replaces the layout for a template key. The
// body is a layout in JSON or YAML.
func (s *Server) handleSaveLayout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLayoutBody))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: layout body: %v", core.ErrFileTooLarge, err))
		return
	}

	layout, err := core.DecodeLayout(body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if layout == nil {
		respondError(w, r, fmt.Errorf("%w: empty body", core.ErrNoFile))
		return
	}

	entry, err := s.layouts.Save(r.Context(), chi.URLParam(r, "key"), *layout)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("layout saved", "template_key", entry.Key, "id", entry.ID)
	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteLayout removes the layout for a template key.
func (s *Server) handleDeleteLayout(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.layouts.Delete(r.Context(), key); err != nil {
		respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("layout deleted", "template_key", key)
	w.WriteHeader(http.StatusNoContent)
}
