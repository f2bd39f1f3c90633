package api

import (
	"net/http"

	"parkwise/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	res, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "login successful", res)
}

// handleRegister creates a regular account. Any role in the body is ignored.
func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	user, err := s.svc.Users.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "user registered", user)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.Me(r.Context(), principal(r))
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "user retrieved", user)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.ListUsers(r.Context(), principal(r))
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "users retrieved", users)
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	user, err := s.svc.Users.CreateUser(r.Context(), principal(r), in)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "user created", user)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	user, err := s.svc.Users.GetUser(r.Context(), principal(r), id)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "user retrieved", user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	var upd service.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	user, err := s.svc.Users.UpdateUser(r.Context(), principal(r), id, upd)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "user updated", user)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}

	if err := s.svc.Users.DeleteUser(r.Context(), principal(r), id); err != nil {
		writeServiceError(w, r, &s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "user deleted", nil)
}
