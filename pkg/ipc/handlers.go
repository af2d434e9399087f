package ipc

import (
	"bytes"
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odvcencio/livewidgets/pkg/engine"
	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/export"
	"github.com/odvcencio/livewidgets/pkg/telemetry"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errPageNotFound = stdliberrors.New("page not found")

type pageSummary struct {
	ID      string `json:"id"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
		"pages":   len(s.manager.Pages()),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	ids := s.manager.Pages()
	out := make([]pageSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, pageSummary{ID: id, Clients: s.hub.Clients(id)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"pages": out})
}

// existingPage resolves {page} without creating it.
func (s *Server) existingPage(w http.ResponseWriter, r *http.Request) (*engine.Page, bool) {
	page, ok := s.manager.Lookup(chi.URLParam(r, "page"))
	if !ok {
		respondError(w, http.StatusNotFound, errPageNotFound)
		return nil, false
	}
	return page, true
}

func (s *Server) handleClosePage(w http.ResponseWriter, r *http.Request) {
	if !s.manager.ClosePage(chi.URLParam(r, "page")) {
		respondError(w, http.StatusNotFound, errPageNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	body, status, err := readBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		respondError(w, status, err)
		return
	}
	page, err := s.manager.Page(chi.URLParam(r, "page"))
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	result, err := page.MountHTML(r.Context(), string(body))
	if err != nil {
		status := statusForError(err)
		if apperrors.IsCode(err, apperrors.ErrCodeUnknownWidget) {
			status = http.StatusUnprocessableEntity
		}
		respondError(w, status, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleWidgets(w http.ResponseWriter, r *http.Request) {
	page, ok := s.existingPage(w, r)
	if !ok {
		return
	}
	widgets, err := page.Widgets(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"widgets": widgets})
}

func (s *Server) handleUpdateElement(w http.ResponseWriter, r *http.Request) {
	page, ok := s.existingPage(w, r)
	if !ok {
		return
	}
	var req engine.UpdateRequest
	if status, err := decodeJSONBody(w, r, &req, s.cfg.MaxBodyBytes, false); err != nil {
		respondError(w, status, err)
		return
	}
	if err := page.Update(r.Context(), chi.URLParam(r, "element"), req); err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDestroyElement(w http.ResponseWriter, r *http.Request) {
	page, ok := s.existingPage(w, r)
	if !ok {
		return
	}
	if err := page.Destroy(r.Context(), chi.URLParam(r, "element")); err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	page, ok := s.existingPage(w, r)
	if !ok {
		return
	}
	body, status, err := readBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		respondError(w, status, err)
		return
	}
	if !json.Valid(body) {
		respondError(w, http.StatusBadRequest, apperrors.New(apperrors.ErrCodeMalformedInput, "event payload is not JSON"))
		return
	}
	delivered, err := page.Dispatch(r.Context(), chi.URLParam(r, "channel"), json.RawMessage(body))
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	telemetry.ObserveDispatch("http", delivered)
	respondJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	page, ok := s.existingPage(w, r)
	if !ok {
		return
	}
	var req engine.Announcement
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny, false); err != nil {
		respondError(w, status, err)
		return
	}
	id, err := page.Announce(r.Context(), req)
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	page, ok := s.existingPage(w, r)
	if !ok {
		return
	}
	widgets, err := page.Widgets(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, widgets); err != nil {
		s.logger.Printf("export %s failed: %v", page.ID(), err)
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", page.ID()+".xlsx"))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
