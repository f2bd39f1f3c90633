package api

import (
	"net/http"

	"parkwise/internal/models"

	"github.com/go-chi/chi/v5"
)

type parkingRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	TotalSpaces int64   `json:"totalSpaces"`
	HourlyFee   float64 `json:"hourlyFee"`
}

func (s *HTTPServer) handleListParkings(w http.ResponseWriter, r *http.Request) {
	parkings, err := s.svc.Parkings.ListParkings(r.Context())
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "parkings retrieved", parkings)
}

func (s *HTTPServer) handleGetParking(w http.ResponseWriter, r *http.Request) {
	parking, err := s.svc.Parkings.GetParking(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "parking retrieved", parking)
}

func (s *HTTPServer) handleCreateParking(w http.ResponseWriter, r *http.Request) {
	var req parkingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	parking := &models.Parking{
		Code:        req.Code,
		Name:        req.Name,
		Location:    req.Location,
		TotalSpaces: req.TotalSpaces,
		HourlyFee:   req.HourlyFee,
	}
	if err := s.svc.Parkings.CreateParking(r.Context(), principal(r), parking); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "parking created", parking)
}

func (s *HTTPServer) handleUpdateParking(w http.ResponseWriter, r *http.Request) {
	var upd models.ParkingUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	parking, err := s.svc.Parkings.UpdateParking(r.Context(), principal(r), chi.URLParam(r, "code"), upd)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "parking updated", parking)
}

func (s *HTTPServer) handleDeleteParking(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Parkings.DeleteParking(r.Context(), principal(r), chi.URLParam(r, "code")); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "parking deleted", nil)
}
