package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/coffee-shop/backend/app"
	"github.com/upb/coffee-shop/backend/handlers"
	"github.com/upb/coffee-shop/backend/internal/observability"
	"github.com/upb/coffee-shop/backend/middleware"
	"github.com/upb/coffee-shop/backend/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger.Named("http")))
	r.Use(chimw.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	// Health check endpoints
	var checker handlers.HealthChecker
	if deps.DB != nil {
		checker = deps.DB
	}
	health := handlers.NewHealthHandler(checker, deps.Logger.Named("health"))
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Registry != nil {
		r.Handle("/metrics", observability.MetricsHandler(deps.Registry))
	}

	drinkHandler := handlers.NewDrinkHandler(deps.DrinkService, deps.Logger.Named("drinks"))
	auth := deps.AuthMiddleware
	RegisterDrinkRoutes(r, drinkHandler, auth)

	return r
}

// RegisterDrinkRoutes mounts the drinks API. Only the short listing is public.
func RegisterDrinkRoutes(r chi.Router, h *handlers.DrinkHandler, auth *middleware.AuthMiddleware) {
	r.Get("/drinks", h.HandleListDrinks)
	r.Get("/drinks-detail", auth.RequiresAuth(handlers.PermissionGetDrinksDetail, h.HandleListDrinksDetail))
	r.Post("/drinks", auth.RequiresAuth(handlers.PermissionPostDrinks, h.HandleCreateDrink))
	r.Patch("/drinks/{id}", auth.RequiresAuth(handlers.PermissionPatchDrinks, h.HandleUpdateDrink))
	r.Delete("/drinks/{id}", auth.RequiresAuth(handlers.PermissionDeleteDrinks, h.HandleDeleteDrink))
}
