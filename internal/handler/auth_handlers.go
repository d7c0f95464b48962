package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

type authPage struct {
	Error    string
	Username string
}

func (s *Server) handleSignupPage(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "signup.html", authPage{})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	err := s.auth.Signup(r.Context(), username, password)
	switch {
	case err == nil:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.Is(err, models.ErrUserExists):
		s.render(w, http.StatusConflict, "signup.html", authPage{Error: "Username already taken", Username: username})
	case errors.Is(err, models.ErrInvalidCredentials):
		s.render(w, http.StatusBadRequest, "signup.html", authPage{Error: "Username and password are required", Username: username})
	default:
		writeError(w, err)
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "login.html", authPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")

	token, expires, err := s.auth.Login(r.Context(), username, r.FormValue("password"))
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			s.render(w, http.StatusUnauthorized, "login.html", authPage{Error: "Invalid username or password", Username: username})
			return
		}
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
