// internal/api/http/router.go
package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/cityprosperity/internal/auth"
	authmw "github.com/mind-engage/cityprosperity/internal/auth/middleware"
	"github.com/mind-engage/cityprosperity/internal/city"
	"github.com/mind-engage/cityprosperity/internal/rbac"
	"github.com/mind-engage/cityprosperity/internal/storage"
)

type Deps struct {
	Service     *city.Service
	Auth        *authmw.AuthService
	Users       *auth.Users
	DB          *sql.DB // users table; role lookups are skipped when nil
	Limiter     *SubmitLimiter
	Blobs       storage.BlobStore // report routes are mounted only when set
	CORSOrigins []string
	Offline     bool
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))
		if d.DB != nil {
			pr.Use(authmw.AttachRoleFromDB(d.DB, d.Offline))
		}

		pr.With(rbac.Require("indicator:view")).Get("/indicators", ListIndicatorsHandler(d.Service))
		pr.With(rbac.Require("indicator:view")).Get("/hierarchy", HierarchyHandler(d.Service))
		pr.With(rbac.Require("indicator:view")).Post("/indicators/{key}/preview", PreviewHandler(d.Service))

		pr.With(rbac.RequireAny("city:view", "city:list_all")).Get("/cities", ListCitiesHandler(d.Service))
		pr.With(rbac.Require("city:view")).Get("/cities/compare", CompareCitiesHandler(d.Service))

		pr.Route("/cities/{country}/{city}", func(cr chi.Router) {
			cr.With(rbac.Require("city:view")).Get("/", GetCityHandler(d.Service))
			cr.With(rbac.Require("city:delete")).Delete("/", DeleteCityHandler(d.Service))
			cr.With(rbac.Require("city:view")).Get("/aggregate", AggregateHandler(d.Service))
			cr.With(rbac.Require("city:view")).Get("/history", HistoryHandler(d.Service))
			cr.With(rbac.Require("city:submit"), d.Limiter.Middleware).
				Post("/indicators/{key}", SubmitIndicatorHandler(d.Service))
			if d.Blobs != nil {
				cr.With(rbac.Require("report:export")).Post("/report", ExportReportHandler(d.Service, d.Blobs))
			}
		})

		if d.Blobs != nil {
			pr.With(rbac.Require("report:view")).Route("/reports", func(rr chi.Router) {
				MountReports(rr, d.Service, d.Blobs)
			})
		}

		pr.With(rbac.Require("users:manage")).Post("/users", CreateUserHandler(d.Users))
		pr.With(rbac.Require("users:manage")).Get("/users", ListUsersHandler(d.Users))
	})
	return r
}
