package api

import (
	"net/http"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	FullName       *string `json:"fullName"`
	TelegramChatID *int64  `json:"telegramChatId"`
}

type userResponse struct {
	Message string      `json:"message,omitempty"`
	User    *model.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := s.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeServiceError(w, r, err, "User not found", "Forbidden")
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, userResponse{Message: "User registered successfully", User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "User not found", "Forbidden")
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, userResponse{Message: "Login successful", User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.CurrentUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "User not found", "Forbidden")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.auth.UpdateProfile(r.Context(), userIDFrom(r.Context()), service.ProfileInput{
		FullName:       req.FullName,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		writeServiceError(w, r, err, "User not found", "Forbidden")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "Profile updated successfully", User: user})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.cookie(token, int(s.opts.SessionTTL/time.Second)))
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", -1))
}

func (s *Server) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	}
	// Browsers drop SameSite=None cookies that are not Secure.
	if !c.Secure {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}
