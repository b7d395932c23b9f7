package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/observability/metrics"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth AuthServiceInterface
	// Optional: on-demand maintenance jobs, admin only.
	Jobs JobRunner
	// Optional: readiness checks served on /readyz.
	Checks  map[string]HealthCheck
	Metrics *metrics.Metrics

	CookieDomain    string
	ReturnCookieTTL time.Duration
	Logger          *slog.Logger
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", &ReadinessHandler{Checks: services.Checks, Logger: logger})
	mux.Handle("GET /metrics", services.Metrics.Handler())

	if services.Auth != nil {
		registerAuthRoutes(mux, &AuthHandlers{
			Svc:             services.Auth,
			CookieDomain:    services.CookieDomain,
			ReturnCookieTTL: services.ReturnCookieTTL,
			Logger:          logger,
		})
		if services.Jobs != nil {
			registerJobRoutes(mux, &JobHandlers{Svc: services.Jobs, Logger: logger}, services.Auth)
		}
	}

	var handler http.Handler = mux
	handler = Instrument(services.Metrics)(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /login", h.Login)
	mux.HandleFunc("POST /verify", h.Verify)
	mux.HandleFunc("GET /signup", h.Signup)
	mux.HandleFunc("GET /logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, auth AuthServiceInterface) {
	admin := RequireRole(auth, domainauth.RoleAdmin)
	mux.Handle("GET /admin/jobs", admin(http.HandlerFunc(h.List)))
	mux.Handle("POST /admin/jobs/{name}/run", admin(http.HandlerFunc(h.Run)))
}
