package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shopfront/accounts/internal/app/metrics"
	"github.com/shopfront/accounts/internal/app/services/auth"
	"github.com/shopfront/accounts/internal/middleware"
	"github.com/shopfront/accounts/pkg/logger"
)

// RouterConfig carries the knobs the router needs beyond the API itself.
type RouterConfig struct {
	AllowedOrigins    string
	RequestsPerSecond int
	Burst             int
}

// NewRouter assembles the HTTP surface: middleware chain, account routes,
// health and metrics endpoints.
func NewRouter(api *API, authSvc *auth.Service, cfg RouterConfig, log *logger.Logger) *mux.Router {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst == 0 {
		cfg.Burst = 40
	}

	r := mux.NewRouter()
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Identity(authSvc, log))
	r.Use(middleware.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, log).Handler)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v := api.views
	r.Handle("/users/token", v.token).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/users/token/refresh", v.tokenRefresh).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/users/token/verify", v.tokenVerify).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/users/current", v.current).Methods(http.MethodGet, http.MethodPatch, http.MethodOptions)
	r.Handle("/users", v.admin).Methods(http.MethodGet, http.MethodPatch, http.MethodDelete, http.MethodOptions)
	r.Handle("/users/create-basic", v.createBasic).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/users/activate", v.activate).Methods(http.MethodGet, http.MethodPatch, http.MethodOptions)
	r.Handle("/users/request-password-reset", v.requestReset).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/users/reset-password", v.resetPassword).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/users/change-password", v.changePass).Methods(http.MethodPatch, http.MethodOptions)

	return r
}
