package handler

import (
	"errors"
	"net/http"

	"github.com/dukerupert/barangay/internal/account"
	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/middleware"
	"github.com/dukerupert/barangay/internal/sentinel"
)

type AuthHandler struct {
	Base
	accounts *account.Service
}

func NewAuthHandler(b Base, accounts *account.Service) *AuthHandler {
	return &AuthHandler{Base: b, accounts: accounts}
}

type loginData struct {
	Username string
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, http.StatusOK, "login.html", h.page(w, r, "Sign in", loginData{}))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	sess, _, err := h.accounts.Login(r.Context(), username, password)
	if err != nil {
		page := h.page(w, r, "Sign in", loginData{Username: username})
		if errors.Is(err, sentinel.ErrPermission) {
			page.Message = "Invalid username or password."
			h.render.Render(w, http.StatusUnauthorized, "login.html", page)
			return
		}
		h.formError(w, r, err, "login.html", page)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.accounts.Sessions().TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.accounts.Logout(r.Context(), ac.SessionID); err != nil {
			h.logger.Error("logout", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	flashSuccess(w, "You have been signed out.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
