package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mstgnz/idpay/handler"
	"github.com/mstgnz/idpay/infra/middle"
	"github.com/mstgnz/idpay/infra/response"
	v1 "github.com/mstgnz/idpay/router/v1"
)

// New builds the service router with its middleware stack
func New(services v1.Services, rateLimiter *middle.RateLimiter, health *handler.HealthHandler) *chi.Mux {
	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	r.Use(middle.SecurityHeadersMiddleware())
	if rateLimiter != nil {
		r.Use(middle.RateLimitMiddleware(rateLimiter))
	}
	r.Use(middle.RequestValidationMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Origin", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"Location", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           300, // Preflight cache time (second)
	}))

	// Health check endpoint
	if health != nil {
		r.Get("/health", health.CheckHealth)
	}

	Routes(r, services)

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})

	return r
}

// Routes mounts the versioned API
func Routes(r chi.Router, services v1.Services) {
	r.Route("/v1", func(r chi.Router) {
		v1.Routes(r, services)
	})
}
