package http

import (
	"errors"
	"net/http"

	"github.com/s4hq/s4/internal/s4/service"
	"github.com/s4hq/s4/pkg/httpx"
	"github.com/s4hq/s4/pkg/slogx"
)

// handlePasswordLogin verifies the password and binds the login process to
// the caller's window.
//
//	GET /password_login?username=&password=&windowId=
func (rt *Router) handlePasswordLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	windowID := r.FormValue("windowId")

	if username == "" || password == "" || windowID == "" {
		httpx.WriteError(w, "no credentials found")
		return
	}

	err := rt.Sessions.AuthenticatePassword(r.Context(), username, password, windowID)
	switch {
	case err == nil:
		httpx.WriteSuccess(w, "password verified")
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, "user does not exist")
	case errors.Is(err, service.ErrPasswordIncorrect):
		httpx.WriteError(w, "password incorrect")
	default:
		slogx.FromContext(r.Context()).Error("password login failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleTwoFALogin submits the TOTP code for an in-progress login.
//
//	GET /twoFA_login?username=&code=&windowId=
func (rt *Router) handleTwoFALogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	code := r.FormValue("code")
	windowID := r.FormValue("windowId")

	if username == "" || code == "" || windowID == "" {
		httpx.WriteError(w, "no credentials found")
		return
	}

	err := rt.Sessions.SubmitTwoFactor(r.Context(), username, code, windowID)
	switch {
	case err == nil:
		httpx.WriteSuccess(w, "twoFA verified")
	case errors.Is(err, service.ErrNoSession):
		httpx.WriteError(w, "no lp found")
	case errors.Is(err, service.ErrSessionExpired):
		httpx.WriteError(w, "login session expired")
	case errors.Is(err, service.ErrNoTwoFactorSetup):
		httpx.WriteError(w, "no twoFA row found")
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteError(w, "invalid twoFA code")
	default:
		slogx.FromContext(r.Context()).Error("twoFA login failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}
