package api

import (
	"net/http"
	"time"

	"sweet_shop/internal/api/handler"
	"sweet_shop/internal/api/middleware"
	"sweet_shop/internal/app/service"
	"sweet_shop/internal/common"
	"sweet_shop/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"
)

type Dependencies struct {
	AuthService    *service.AuthService
	ProductService *service.ProductService
	ReceiptService *service.ReceiptService
	Tokens         *security.TokenManager
	Database       handler.Pinger
	Redis          handler.Pinger // nil when Redis is not configured
	Storage        handler.ImageStore
	Log            *zap.Logger
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Puts the bearer token (or the reason it failed) in context; Authenticator enforces it per route.
	r.Use(jwtauth.Verifier(deps.Tokens.JWTAuth()))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, http.StatusNotFound, "Route not found")
	})

	healthHandler := handler.NewHealthHandler(deps.Database, deps.Redis, deps.Storage, deps.Log)
	r.Get("/api/health", healthHandler.Health)

	r.Route("/route", func(rt chi.Router) {
		authHandler := handler.NewAuthHandler(deps.AuthService, deps.Log)
		rt.Route("/auth", authHandler.RegisterRoutes)

		productHandler := handler.NewProductHandler(deps.ProductService, deps.Log)
		rt.Route("/product", productHandler.RegisterRoutes)

		purchaseHandler := handler.NewPurchaseHandler(deps.ReceiptService, deps.Log)
		rt.Route("/purchases", purchaseHandler.RegisterRoutes)
	})

	return r
}
