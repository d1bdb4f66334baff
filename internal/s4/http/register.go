package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/s4hq/s4/internal/s4/service"
	"github.com/s4hq/s4/pkg/httpx"
	"github.com/s4hq/s4/pkg/slogx"
)

// handleValidateUsername checks that a username is still free.
//
//	GET /validate_username?username=
func (rt *Router) handleValidateUsername(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	if username == "" {
		httpx.WriteError(w, "no credentials found")
		return
	}

	err := rt.Registration.ValidateUsername(r.Context(), username)
	switch {
	case err == nil:
		httpx.WriteSuccess(w, "username valid")
	case errors.Is(err, service.ErrUserExists):
		httpx.WriteError(w, "user already exists")
	default:
		slogx.FromContext(r.Context()).Error("username validation failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleSendVerification mails a fresh 6-digit verification code.
//
//	GET /send_verification?username=
func (rt *Router) handleSendVerification(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	if username == "" {
		httpx.WriteError(w, "no credentials found")
		return
	}

	err := rt.Registration.SendVerification(r.Context(), username)
	switch {
	case err == nil:
		httpx.WriteSuccess(w, "verification email sent")
	case errors.Is(err, service.ErrUserExists):
		httpx.WriteError(w, "user already exists")
	default:
		slogx.FromContext(r.Context()).Error("sending verification failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleValidateVerification checks a mailed code.
//
//	GET /validate_verification?username=&code=
func (rt *Router) handleValidateVerification(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	code := r.FormValue("code")
	if username == "" || code == "" {
		httpx.WriteError(w, "no credentials found")
		return
	}

	err := rt.Registration.ValidateVerification(r.Context(), username, code)
	switch {
	case err == nil:
		httpx.WriteSuccess(w, "verification code valid")
	case errors.Is(err, service.ErrInvalidVerificationCode):
		httpx.WriteError(w, "invalid verification code")
	default:
		slogx.FromContext(r.Context()).Error("verification validation failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleSendTwoFACode returns the TOTP provisioning QR as a PNG. Serves both
// /send_twoFA_code and its refresh alias; the underlying secret is created
// once and reused.
//
//	GET /send_twoFA_code?username=
func (rt *Router) handleSendTwoFACode(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	if username == "" {
		httpx.WriteError(w, "no credentials found")
		return
	}

	qr, err := rt.Registration.SendTwoFACode(r.Context(), username)
	switch {
	case err == nil:
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(qr)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(qr)
	case errors.Is(err, service.ErrUserExists):
		httpx.WriteError(w, "user already exists")
	default:
		slogx.FromContext(r.Context()).Error("sending twoFA code failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleValidateTwoFACode verifies a TOTP code during enrollment.
//
//	GET /validate_twoFA_code?username=&code=
func (rt *Router) handleValidateTwoFACode(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	code := r.FormValue("code")
	if username == "" || code == "" {
		httpx.WriteError(w, "no credentials found")
		return
	}

	err := rt.Registration.ValidateTwoFACode(r.Context(), username, code)
	switch {
	case err == nil:
		httpx.WriteSuccess(w, "twoFA code valid")
	case errors.Is(err, service.ErrNoTwoFactorSetup):
		httpx.WriteError(w, "no twoFA row found")
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteError(w, "invalid twoFA code")
	default:
		slogx.FromContext(r.Context()).Error("twoFA validation failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleCreateUser finalizes registration and returns the generated
// application secret. Both verification gates must already be open.
//
//	GET /create_user?username=&password=&securityQuestion=&securityAnswer=
func (rt *Router) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	question := r.FormValue("securityQuestion")
	answer := r.FormValue("securityAnswer")

	if username == "" || password == "" {
		httpx.WriteError(w, "no credentials found")
		return
	}

	secret, err := rt.Registration.CreateUser(r.Context(), username, password, question, answer)
	switch {
	case err == nil:
		// The secret is handed out exactly once, in the ack itself.
		httpx.WriteSuccess(w, secret)
	case errors.Is(err, service.ErrUserExists):
		httpx.WriteError(w, "user already exists")
	case errors.Is(err, service.ErrPreconditionNotMet):
		httpx.WriteError(w, "preconditions not met")
	default:
		slogx.FromContext(r.Context()).Error("user creation failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}
