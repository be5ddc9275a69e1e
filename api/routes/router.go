package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verdana-market/verdana-backend/api/controllers"
	"github.com/verdana-market/verdana-backend/api/middleware"
	"github.com/verdana-market/verdana-backend/internal/cart"
	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/internal/products"
	"github.com/verdana-market/verdana-backend/internal/settlement"
	"github.com/verdana-market/verdana-backend/internal/users"
	"github.com/verdana-market/verdana-backend/pkg/config"
	"github.com/verdana-market/verdana-backend/pkg/db"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/metrics"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. Every field except the
// pingers and metrics is required.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger    db.Pinger
	RedisPinger redis.Pinger

	SettlementService settlement.Service
	ProductService    products.Service
	GroupService      groups.Service
	UserRepo          *users.Repository
	CartRepo          *cart.Repository
	ProductRepo       *products.Repository
	OutboxRepo        *outbox.Repository

	SettlementMetrics *metrics.SettlementMetrics
	MetricsRegistry   *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisPinger, deps.OutboxRepo, deps.SettlementMetrics))
	})

	if deps.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/users", controllers.CreateUser(deps.UserRepo, logg))
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.ProductService, logg))
			r.Get("/{productID}", controllers.GetProduct(deps.ProductService, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())
		r.Get("/me/progress", controllers.MyProgress(deps.UserRepo, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.CartRepo, logg))
			r.Put("/items", controllers.UpsertCartItem(deps.CartRepo, deps.ProductRepo, logg))
			r.Delete("/items/{productID}", controllers.RemoveCartItem(deps.CartRepo, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.SettlementService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.SettlementService, logg))
			r.Get("/{orderID}", controllers.GetOrder(deps.SettlementService, logg))
			r.Post("/{orderID}/status", controllers.TransitionOrderStatus(deps.SettlementService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(deps.ProductService, logg))
			r.Post("/{productID}/eco-score", controllers.SetEcoScore(deps.ProductService, logg))
			r.Post("/{productID}/restock", controllers.RestockProduct(deps.ProductService, logg))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", controllers.CreateGroup(deps.GroupService, logg))
			r.Route("/{groupID}", func(r chi.Router) {
				r.Get("/", controllers.GetGroup(deps.GroupService, logg))
				r.Post("/join", controllers.JoinGroup(deps.GroupService, logg))
				r.Post("/leave", controllers.LeaveGroup(deps.GroupService, logg))
				r.Post("/roles", controllers.ChangeMemberRole(deps.GroupService, logg))
				r.Post("/challenges", controllers.StartChallenge(deps.GroupService, logg))
				r.Get("/leaderboard", controllers.GroupLeaderboard(deps.GroupService, logg))
				r.Get("/activities", controllers.GroupActivityFeed(deps.GroupService, logg))
			})
		})
	})

	return r
}
