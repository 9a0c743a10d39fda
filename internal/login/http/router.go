package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/civicwatch/reportline/internal/login/service"
	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/pkg/httpx"
	"github.com/civicwatch/reportline/pkg/slogx"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	UserPortal  *service.Orchestrator
	AdminPortal *service.Orchestrator
	Credentials *service.CredentialService
	Activity    *service.ActivityService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerSession()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	loginHandler := &LoginHandler{
		UserPortal:  r.UserPortal,
		AdminPortal: r.AdminPortal,
	}
	otpHandler := &OTPHandler{
		UserPortal:  r.UserPortal,
		AdminPortal: r.AdminPortal,
	}

	// Credential endpoints get the strictest limit; they are the obvious
	// brute-force target.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleUserLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	r.Mux.Handle("POST /v1/admin/login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleAdminLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	r.Mux.Handle("POST /v1/login/otp",
		httpx.Chain(http.HandlerFunc(otpHandler.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	r.Mux.Handle("POST /v1/login/otp/resend",
		httpx.Chain(http.HandlerFunc(otpHandler.HandleResend),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
}

func (r *Router) registerSession() {
	sessionHandler := &SessionHandler{
		Credentials: r.Credentials,
		Activity:    r.Activity,
	}

	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(sessionHandler.HandleCurrent),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(http.HandlerFunc(sessionHandler.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
