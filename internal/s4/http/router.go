package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/s4hq/s4/internal/s4/service"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/pkg/httpx"
	"github.com/s4hq/s4/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	// DevBypassAuth disables the session gate on protected routes. Local
	// development only; never enable in production.
	DevBypassAuth bool

	Sessions     *service.SessionService
	Registration *service.RegistrationService
	Tree         *service.TreeService
	Files        *service.FileService
}

func NewRouter(st store.Store, logger *slog.Logger, buildVersion string) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerRegistration()
	r.registerDirectories()
	r.registerFiles()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	// Credential endpoints get the strict limit, keyed per source IP and
	// target username so one address cannot spray a single account.
	r.Mux.Handle("GET /password_login",
		httpx.Chain(http.HandlerFunc(r.handlePasswordLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		))
	r.Mux.Handle("GET /twoFA_login",
		httpx.Chain(http.HandlerFunc(r.handleTwoFALogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		))
}

func (r *Router) registerRegistration() {
	r.Mux.Handle("GET /validate_username",
		httpx.Chain(http.HandlerFunc(r.handleValidateUsername),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("GET /send_verification",
		httpx.Chain(http.HandlerFunc(r.handleSendVerification),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	r.Mux.Handle("GET /validate_verification",
		httpx.Chain(http.HandlerFunc(r.handleValidateVerification),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("GET /send_twoFA_code",
		httpx.Chain(http.HandlerFunc(r.handleSendTwoFACode),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	// The refresh alias re-renders the QR from the stored secret.
	r.Mux.Handle("GET /send_twoFA_code_refresh",
		httpx.Chain(http.HandlerFunc(r.handleSendTwoFACode),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("GET /validate_twoFA_code",
		httpx.Chain(http.HandlerFunc(r.handleValidateTwoFACode),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("GET /create_user",
		httpx.Chain(http.HandlerFunc(r.handleCreateUser),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
}

func (r *Router) registerDirectories() {
	r.Mux.Handle("GET /get_entry_directory",
		httpx.Chain(http.HandlerFunc(r.handleGetEntryDirectory),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /get_directory",
		httpx.Chain(http.HandlerFunc(r.handleGetDirectory),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /create_directory",
		httpx.Chain(http.HandlerFunc(r.handleCreateDirectory),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /delete_directory",
		httpx.Chain(http.HandlerFunc(r.handleDeleteDirectory),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
}

func (r *Router) registerFiles() {
	r.Mux.Handle("POST /create_file",
		httpx.Chain(http.HandlerFunc(r.handleCreateFile),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /get_file",
		httpx.Chain(http.HandlerFunc(r.handleGetFile),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /delete_file",
		httpx.Chain(http.HandlerFunc(r.handleDeleteFile),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
}

func (r *Router) registerSystem() {
	r.Mux.HandleFunc("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.HandleFunc("GET /readyz", ReadyzHandler(r.store))
	r.Mux.HandleFunc("GET /test_route", TestRouteHandler())
}

// authorize runs the session gate shared by every protected handler. It
// writes the error response itself and reports whether the caller may
// proceed.
func (rt *Router) authorize(w http.ResponseWriter, r *http.Request) bool {
	if rt.DevBypassAuth {
		return true
	}

	username := r.FormValue("username")
	windowID := r.FormValue("windowId")

	ok, err := rt.Sessions.Validate(r.Context(), username, windowID)
	if err != nil {
		slogx.FromContext(r.Context()).Error("session validation failed", "error", err)
		httpx.WriteError(w, "db failed")
		return false
	}
	if !ok {
		httpx.WriteError(w, "invalid session")
		return false
	}
	return true
}
