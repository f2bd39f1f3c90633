package api

import "net/http"

func (s *HTTPServer) handleListFailedNotifications(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.Notifications.ListFailed(r.Context(), principal(r))
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "failed notifications retrieved", tasks)
}
