package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nihalkurra/student-collab-hub/pkg/services"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) *HTTPError {
	var req services.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid json body")
	}
	user, token, err := s.auth.Register(r.Context(), reqIDFrom(r.Context()), req)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusCreated, map[string]any{
		"user":  user,
		"token": token,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) *HTTPError {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid json body")
	}
	if req.Username == "" || req.Password == "" {
		return badRequest("username and password are required")
	}
	user, token, err := s.auth.Login(r.Context(), reqIDFrom(r.Context()), req.Username, req.Password)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"token": token,
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) *HTTPError {
	user, _ := UserFrom(r.Context())
	return writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// updateProfile accepts multipart form fields plus an optional avatar file,
// which is pushed to the hosted image service before the profile is touched.
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) *HTTPError {
	self, _ := UserFrom(r.Context())
	reqID := reqIDFrom(r.Context())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return badRequest("expected a multipart form")
	}
	upd := services.ProfileUpdate{
		Username:   r.FormValue("username"),
		Email:      r.FormValue("email"),
		FullName:   r.FormValue("fullName"),
		Bio:        r.FormValue("bio"),
		University: r.FormValue("university"),
		Major:      r.FormValue("major"),
	}
	if v := r.FormValue("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return badRequest("year must be a number")
		}
		upd.Year = year
	}

	if file, header, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		att, err := s.media.Upload(r.Context(), reqID, header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			return internal(err)
		}
		upd.Avatar = att.URL
	}

	user, err := s.users.Update(r.Context(), reqID, self, upd)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
