package app

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"imgpub/internal/config"
	"imgpub/internal/handlers"
	"imgpub/internal/metrics"
)

// InitMiddleware - initializes middleware handlers for the router.
// Request deadlines are set per route group in Routing.
func InitMiddleware(r *chi.Mux, ctrl *handlers.Controller) {
	r.Use(ctrl.PanicRecoveryMiddleware)
	r.Use(middleware.RealIP)
	r.Use(ctrl.LoggingMiddleware)
	r.Use(middleware.Compress(5, "application/json", "text/plain"))
	r.Use(ctrl.GzipDecodeMiddleware)
	r.Mount("/debug", middleware.Profiler())
}

// Routing - registers routes for the controller.
// Registered routes:
//   - POST "/api/upload": validates, sanitizes and publishes a file through ctrl.Upload().
//   - GET "/s/{code}": redirects to the link target through ctrl.Redirect().
//   - GET "/api/links": lists the owner's links through ctrl.ListLinks().
//   - DELETE "/api/links": deletes a batch of the owner's links through ctrl.BatchDeleteLinks().
//   - DELETE "/api/links/{code}": deletes one of the owner's links through ctrl.DeleteLink().
//   - GET "/api/admin/links/export": exports every link through ctrl.ExportLinks().
//   - DELETE "/api/admin/links": deletes every link through ctrl.DeleteAllLinks().
//   - POST "/api/admin/migration/scan": rewrites targets on the retired host through ctrl.ScanMigration().
//   - GET "/api/admin/migration/stats": counts links per mirror host through ctrl.MigrationStats().
//   - PUT "/api/admin/gateway": stores a gateway setting through ctrl.PutGatewayConfig().
//   - GET "/ping": datastore availability check through ctrl.PingHandler().
//   - GET "/metrics": Prometheus metrics.
//
// The upload route runs under conf.UploadTimeout so the request deadline
// never cuts the publish retries short; every other route uses conf.Timeout.
func Routing(r *chi.Mux, conf *config.Config, ctrl *handlers.Controller) {
	requestTimeout := middleware.Timeout(time.Duration(conf.Timeout) * time.Second)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(conf.UploadTimeout()))
		r.Use(ctrl.Authenticate)
		r.Post("/api/upload", ctrl.Upload())
	})

	r.Group(func(r chi.Router) {
		r.Use(requestTimeout)
		r.Get("/s/{code}", ctrl.Redirect())
		r.Get("/ping", ctrl.PingHandler())
		r.Handle("/metrics", metrics.Handler())

		r.Group(func(r chi.Router) {
			r.Use(ctrl.Authenticate)
			r.Get("/api/links", ctrl.ListLinks())
			r.Delete("/api/links", ctrl.BatchDeleteLinks())
			r.Delete("/api/links/{code}", ctrl.DeleteLink())
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(requestTimeout)
		r.Use(ctrl.AdminOnly)
		r.Get("/links/export", ctrl.ExportLinks())
		r.Delete("/links", ctrl.DeleteAllLinks())
		r.Post("/migration/scan", ctrl.ScanMigration())
		r.Get("/migration/stats", ctrl.MigrationStats())
		r.Put("/gateway", ctrl.PutGatewayConfig())
	})
}

// NewRouter builds the chi router with middleware and routes.
func NewRouter(conf *config.Config, ctrl *handlers.Controller) *chi.Mux {
	r := chi.NewRouter()
	InitMiddleware(r, ctrl)
	Routing(r, conf, ctrl)
	return r
}
