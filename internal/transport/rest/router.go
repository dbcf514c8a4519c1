package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/softeno/permission-template/internal/auth"
	"github.com/softeno/permission-template/internal/external"
	"github.com/softeno/permission-template/internal/metrics"
	"github.com/softeno/permission-template/internal/permission"
	"github.com/softeno/permission-template/internal/transport/middleware"
	"github.com/softeno/permission-template/internal/transport/swagger"
)

// Routes collects everything the router mounts. Nil members are skipped.
type Routes struct {
	Health       *HealthHandler
	Auth         *auth.Handler
	Permission   *permission.Handler
	External     *external.Handler
	Metrics      *metrics.Registry
	MetricsPath  string
	Spec         *swagger.Spec
	RequiredRole string
	Origins      []string
}

func RegisterAllRoutes(router *chi.Mux, routes Routes, logger *slog.Logger) {
	router.Use(middleware.CORS(routes.Origins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(logger))
	if routes.Metrics != nil {
		router.Use(routes.Metrics.Middleware)
	}
	router.Use(middleware.LoggingMiddleware(logger))

	if routes.Spec != nil {
		router.Method(http.MethodGet, swagger.SpecPath, routes.Spec.Handler())
		router.Handle("/swagger/*", swagger.UIHandler())
	}

	if routes.Health != nil {
		router.Get("/health", routes.Health.Health)
		router.Get("/ping", routes.Health.Ping)
	}

	if routes.Metrics != nil {
		path := routes.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Method(http.MethodGet, path, routes.Metrics.Handler())
	}

	router.Group(func(r chi.Router) {
		if routes.Auth != nil {
			r.Use(routes.Auth.AuthMiddleware)
		}

		if routes.External != nil {
			r.HandleFunc("/sample-secured/{id}", routes.External.Echo)
		}

		r.Group(func(ar chi.Router) {
			if routes.Auth != nil {
				ar.Use(routes.Auth.RequireRole(routes.RequiredRole))
			}

			if routes.Permission != nil {
				ar.Route("/permissions", func(pr chi.Router) {
					pr.Get("/", routes.Permission.ListPermissions)
					pr.Post("/", routes.Permission.CreatePermission)
					pr.Get("/count", routes.Permission.CountPermissions)
					pr.Post("/batch", routes.Permission.ImportPermissions)
					pr.Get("/{id}", routes.Permission.GetPermission)
					pr.Put("/{id}", routes.Permission.UpdatePermission)
					pr.Delete("/{id}", routes.Permission.DeletePermission)
				})
			}

			if routes.External != nil {
				ar.Get("/external/{id}", routes.External.GetResource)
			}
		})
	})
}
