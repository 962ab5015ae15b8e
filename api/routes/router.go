package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ordena-app/ordena-backend/api/controllers"
	"github.com/ordena-app/ordena-backend/api/middleware"
	"github.com/ordena-app/ordena-backend/internal/auth"
	"github.com/ordena-app/ordena-backend/internal/consolidation"
	"github.com/ordena-app/ordena-backend/internal/orders"
	"github.com/ordena-app/ordena-backend/internal/products"
	"github.com/ordena-app/ordena-backend/pkg/config"
	"github.com/ordena-app/ordena-backend/pkg/db"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	"github.com/ordena-app/ordena-backend/pkg/logger"
	"github.com/ordena-app/ordena-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface of the ordering platform.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	authService auth.Service,
	productService products.Service,
	ordersService orders.Service,
	consolidationService consolidation.Service,
) http.Handler {
	r := chi.NewRouter()

	// A nil *redis.Client must stay a nil interface downstream.
	var idemStore redis.IdempotencyStore
	var limitStore middleware.RateLimiterStore
	var redisPinger redis.Pinger
	if redisClient != nil {
		idemStore = redisClient
		limitStore = redisClient
		redisPinger = redisClient
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limitStore, logg)).
			Post("/login", controllers.AuthLogin(authService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, limitStore, logg)).
				Post("/register", controllers.AuthRegister(authService, logg))
			r.Get("/me", controllers.AuthMe(authService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(productService, logg))
			r.Post("/", controllers.CreateProduct(productService, logg))
			r.Get("/{productId}", controllers.GetProduct(productService, logg))
			r.Patch("/{productId}", controllers.UpdateProduct(productService, logg))
			r.Delete("/{productId}", controllers.DeleteProduct(productService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Post("/", controllers.CreateOrder(ordersService, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(ordersService, logg))
				r.Delete("/", controllers.DeleteOrder(ordersService, logg))
				r.Post("/items", controllers.AddOrderItem(ordersService, logg))
				r.Patch("/items/{itemId}", controllers.UpdateOrderItem(ordersService, logg))
				r.Delete("/items/{itemId}", controllers.RemoveOrderItem(ordersService, logg))
				r.Post("/submit", controllers.SubmitOrder(ordersService, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(string(enums.UserRoleEmployee), logg))
					r.Post("/approve", controllers.ApproveOrder(ordersService, logg))
					r.Post("/reject", controllers.RejectOrder(ordersService, logg))
					r.Post("/decline", controllers.DeclineOrder(ordersService, logg))
					r.Post("/complete", controllers.CompleteOrder(ordersService, logg))
				})
			})
		})

		r.Route("/consolidations", func(r chi.Router) {
			r.Get("/", controllers.ListConsolidatedOrders(consolidationService, logg))
			r.Get("/{consolidatedOrderId}", controllers.GetConsolidatedOrder(consolidationService, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleEmployee), logg)).
				Post("/", controllers.RunConsolidation(consolidationService, logg))
		})
	})

	return r
}
