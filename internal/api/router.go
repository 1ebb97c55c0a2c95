package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/orodjarna/internal/auth"
	"github.com/erazemk/orodjarna/internal/lifecycle"
	"github.com/erazemk/orodjarna/internal/metrics"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/scan"
	"github.com/erazemk/orodjarna/internal/store"
)

// Deps are the services the router dispatches to. Metrics and Gatherer may
// be nil, in which case nothing is measured and /metrics is not served.
type Deps struct {
	Store     *store.Store
	Lifecycle *lifecycle.Service
	Scanner   *scan.Resolver
	Tokens    *auth.Issuer
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Store: d.Store, Tokens: d.Tokens}
	usersHandler := &UsersHandler{Store: d.Store}
	categoriesHandler := &CategoriesHandler{Store: d.Store}
	toolsHandler := &ToolsHandler{Store: d.Store, Lifecycle: d.Lifecycle}
	actionsHandler := &ActionsHandler{Lifecycle: d.Lifecycle}
	scanHandler := &ScanHandler{Resolver: d.Scanner}
	exportsHandler := &ExportsHandler{Store: d.Store}

	authMW := AuthMiddleware(d.Tokens, d.Store)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Categories: read (all roles), write (manager+).
	mux.Handle("GET /api/categories", authMW(http.HandlerFunc(categoriesHandler.List)))
	mux.Handle("POST /api/categories", authMW(requireManager(http.HandlerFunc(categoriesHandler.Create))))
	mux.Handle("DELETE /api/categories/{id}", authMW(requireManager(http.HandlerFunc(categoriesHandler.Delete))))

	// Tools: read (all roles), write (manager+).
	mux.Handle("GET /api/tools", authMW(http.HandlerFunc(toolsHandler.List)))
	mux.Handle("POST /api/tools", authMW(requireManager(http.HandlerFunc(toolsHandler.Create))))
	mux.Handle("GET /api/tools/{id}", authMW(http.HandlerFunc(toolsHandler.Get)))
	mux.Handle("PUT /api/tools/{id}", authMW(requireManager(http.HandlerFunc(toolsHandler.Update))))
	mux.Handle("DELETE /api/tools/{id}", authMW(requireManager(http.HandlerFunc(toolsHandler.Delete))))
	mux.Handle("PUT /api/tools/{id}/image", authMW(requireManager(http.HandlerFunc(toolsHandler.UploadImage))))
	mux.Handle("GET /api/tools/{id}/image", authMW(http.HandlerFunc(toolsHandler.GetImage)))
	mux.Handle("GET /api/tools/{id}/history", authMW(http.HandlerFunc(toolsHandler.History)))

	// Lifecycle: export and return (all roles), status and repair (manager+).
	mux.Handle("POST /api/tools/{id}/export", authMW(http.HandlerFunc(actionsHandler.Export)))
	mux.Handle("POST /api/tools/{id}/return", authMW(http.HandlerFunc(actionsHandler.Return)))
	mux.Handle("POST /api/tools/{id}/status", authMW(requireManager(http.HandlerFunc(actionsHandler.ChangeStatus))))
	mux.Handle("POST /api/tools/{id}/reconcile", authMW(requireManager(http.HandlerFunc(actionsHandler.Reconcile))))
	mux.Handle("POST /api/reconcile", authMW(requireAdmin(http.HandlerFunc(actionsHandler.ReconcileAll))))

	// Scanning, export log and counts (all roles).
	mux.Handle("GET /api/scan", authMW(http.HandlerFunc(scanHandler.Resolve)))
	mux.Handle("GET /api/exports", authMW(http.HandlerFunc(exportsHandler.List)))
	mux.Handle("GET /api/stats", authMW(http.HandlerFunc(exportsHandler.Stats)))

	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	return LoggingMiddleware(d.Metrics)(mux)
}
