package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"parkwise/internal/auth"
	"parkwise/internal/database"

	"github.com/go-chi/chi/v5"
)

type entryRequest struct {
	PlateNumber string `json:"plateNumber"`
	ParkingCode string `json:"parkingCode"`
}

// principal returns the caller set by authMiddleware.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// pathID rejects ids that are not integers. A well-formed id that cannot
// exist is reported as not found.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", database.ErrInvalidInput, raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: id %d", database.ErrNotFound, id)
	}
	return id, nil
}

func (s *HTTPServer) handleRegisterEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	receipt, err := s.svc.Entries.RegisterEntry(r.Context(), principal(r), req.PlateNumber, req.ParkingCode)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "entry registered", receipt)
}

func (s *HTTPServer) handleRegisterExit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	receipt, err := s.svc.Entries.RegisterExit(r.Context(), principal(r), id)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "exit registered", receipt)
}

func (s *HTTPServer) handleListEntries(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("parkingCode"))
	entries, err := s.svc.Entries.ListEntries(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "entries retrieved", entries)
}

func (s *HTTPServer) handleListActiveEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Entries.ListActiveEntries(r.Context())
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "active entries retrieved", entries)
}

func (s *HTTPServer) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	entry, err := s.svc.Entries.GetEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "entry retrieved", entry)
}

func (s *HTTPServer) handleListParkingEntries(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	entries, err := s.svc.Entries.ListEntriesByParking(r.Context(), chi.URLParam(r, "code"), activeOnly)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "entries retrieved", entries)
}
