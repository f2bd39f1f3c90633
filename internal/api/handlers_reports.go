package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func dateParams(r *http.Request) (string, string) {
	q := r.URL.Query()
	return q.Get("startDate"), q.Get("endDate")
}

func (s *HTTPServer) handleOutgoingReport(w http.ResponseWriter, r *http.Request) {
	start, end := dateParams(r)
	rep, err := s.svc.Reports.Outgoing(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "outgoing report", rep)
}

func (s *HTTPServer) handleIncomingReport(w http.ResponseWriter, r *http.Request) {
	start, end := dateParams(r)
	rep, err := s.svc.Reports.Incoming(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "incoming report", rep)
}

func (s *HTTPServer) handleOccupancyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Reports.Occupancy(r.Context())
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "occupancy report", rep)
}

func (s *HTTPServer) handleRevenueReport(w http.ResponseWriter, r *http.Request) {
	start, end := dateParams(r)
	rep, err := s.svc.Reports.Revenue(r.Context(), start, end, r.URL.Query().Get("groupBy"))
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "revenue report", rep)
}

func (s *HTTPServer) handleEntriesReport(w http.ResponseWriter, r *http.Request) {
	start, end := dateParams(r)
	rep, err := s.svc.Reports.Entries(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "entries report", rep)
}

func (s *HTTPServer) handleExportReport(w http.ResponseWriter, r *http.Request) {
	start, end := dateParams(r)
	data, name, err := s.svc.Reports.Export(r.Context(), chi.URLParam(r, "kind"), start, end, r.URL.Query().Get("groupBy"))
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
