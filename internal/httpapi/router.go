package httpapi

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/auth"
	"github.com/emaland/cmp/internal/instancetype"
	"github.com/emaland/cmp/internal/inventory"
)

// Backend holds the services the handlers call.
type Backend struct {
	InstanceTypes *instancetype.Service
	Providers     *inventory.ProviderService
	Regions       *inventory.RegionService
	Networks      *inventory.NetworkService
	Groups        *inventory.GroupService
	Auth          *auth.Service

	// DefaultProvider is used when a request names no provider_code.
	DefaultProvider string
}

type handler struct {
	api
	b Backend
}

// NewHandler builds the router. Routes live under prefix except /healthz
// and /metrics.
func NewHandler(log *zap.Logger, b Backend, prefix string) http.Handler {
	h := &handler{api: api{log: log}, b: b}

	reg := prometheus.NewRegistry()
	metrics := newHTTPMetrics()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(metrics.collectors()...)
	if b.InstanceTypes != nil {
		reg.MustRegister(b.InstanceTypes.PrometheusCollectors()...)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMW(log))
	r.Use(recoverMW(&h.api))
	r.Use(metrics.middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondStatus(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if prefix == "" {
		prefix = "/"
	}
	r.Route(prefix, func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/refresh", h.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(&h.api, b.Auth))

			r.Post("/auth/logout", h.handleLogout)
			r.Get("/users/me", h.handleMe)

			r.Get("/instance_type/available_type", h.handleAvailableTypes)
			r.Get("/instance_type/list", h.handleListCatalog)
			r.Get("/instance_type/price", h.handlePrice)
			r.Get("/cloud_providers/page_list", h.handleProviderPage)
			r.Get("/cloud_regions/list", h.handleRegions)
			r.Get("/cloud_zones/list", h.handleZones)
			r.Get("/cloud_vpcs/list", h.handleVPCs)
			r.Get("/cloud_vswitches/list", h.handleVSwitches)
			r.Get("/cloud_security_groups/list", h.handleSecurityGroups)
			r.Get("/cloud_images/list", h.handleImages)
			r.Get("/resource_groups/page_list", h.handleGroupPage)
			r.Get("/resource_group_bindings/group/{id}/page", h.handleBindingPage)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin(&h.api))

				r.Post("/instance_type/sync", h.handleSyncCatalog)
				r.Post("/cloud_providers/create", h.handleProviderCreate)
				r.Put("/cloud_providers/update/{id}", h.handleProviderUpdate)
				r.Delete("/cloud_providers/delete/{id}", h.handleProviderDelete)
				r.Post("/resource_groups/create", h.handleGroupCreate)
				r.Put("/resource_groups/update/{id}", h.handleGroupUpdate)
				r.Delete("/resource_groups/delete/{id}", h.handleGroupDelete)
				r.Post("/resource_group_bindings/bind", h.handleBind)
				r.Delete("/resource_group_bindings/{id}", h.handleUnbind)
			})
		})
	})
	return r
}

func (h *handler) respondStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	encodeEnvelope(w, envelope{Code: status, Message: msg})
}

func (h *handler) providerCode(q *query) string {
	if code := q.str("provider_code"); code != "" {
		return code
	}
	return h.b.DefaultProvider
}
