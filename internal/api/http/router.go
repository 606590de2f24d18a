package http

import (
	"net/http"
	"strings"
	"time"

	"custody-backend/internal/security"
	"custody-backend/internal/service"
	"custody-backend/internal/storage"

	"github.com/gorilla/mux"
)

// RouterConfig carries everything the HTTP adapter needs.
type RouterConfig struct {
	Lifecycle service.LifecycleService
	Artifacts service.ArtifactService
	// Notifier may be nil to disable post-commit notifications.
	Notifier service.NotificationService
	Oracle   security.IdentityOracle
	Files    storage.Storage

	BaseURL            string
	DownloadExpiry     time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

// NewRouter builds the /api/v1 router. Route names key the security table in
// config.RouteSecurityConfig.
func NewRouter(cfg RouterConfig) *mux.Router {
	assets := &AssetHandler{
		lifecycle: cfg.Lifecycle,
		artifacts: cfg.Artifacts,
		notifier:  cfg.Notifier,
		views: &viewBuilder{
			baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
			files:          cfg.Files,
			downloadExpiry: cfg.DownloadExpiry,
		},
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware, identityMiddleware(cfg.Oracle))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet).Name("health")

	api := router.PathPrefix("/api/v1").Subrouter()
	if cfg.Files != nil {
		api.HandleFunc("/files/{hash}", NewFileHandler(cfg.Files).Download).
			Methods(http.MethodGet).Name("files.download")
	}

	api.HandleFunc("/assets", assets.Create).Methods(http.MethodPost).Name("assets.create")
	api.HandleFunc("/assets", assets.List).Methods(http.MethodGet).Name("assets.list")
	api.HandleFunc("/assets/{id}", assets.Get).Methods(http.MethodGet).Name("assets.get")
	api.HandleFunc("/assets/{id}", assets.Update).Methods(http.MethodPatch).Name("assets.update")
	api.HandleFunc("/assets/{id}/{action:approve|deny|assign|free|release|return}", assets.Transition).
		Methods(http.MethodPost).Name("assets.transition")
	api.HandleFunc("/custodians", assets.ListCustodians).Methods(http.MethodGet).Name("custodians.list")

	limiter := newCallerLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	api.Handle("/assets/{id}/qr", limiter.middleware(http.HandlerFunc(assets.QR))).
		Methods(http.MethodGet).Name("assets.qr")
	api.Handle("/assets/{id}/qr.pdf", limiter.middleware(http.HandlerFunc(assets.QRDocument))).
		Methods(http.MethodGet).Name("assets.qr_pdf")

	return router
}
