package routes

import (
	"context"
	"net/http"
	"time"

	"storefront/cart"
	"storefront/metrics"
	"storefront/middleware"
	"storefront/orders"
	"storefront/products"
	"storefront/ratelim"
	"storefront/utils"

	"github.com/julienschmidt/httprouter"
)

// Deps carries everything the route tables need.
type Deps struct {
	RateLimiter *ratelim.RateLimiter
	Resolver    middleware.CallerResolver
	Metrics     *metrics.ServerMetrics
	Idempotency middleware.IdempotencyStore

	Products *products.Handler
	Cart     *cart.Handler
	Orders   *orders.Handler

	CartTTL       time.Duration
	SecureCookies bool

	// Health reports whether backing stores are reachable.
	Health func(ctx context.Context) error
}

func RoutesWrapper(router *httprouter.Router, d Deps) {
	AddOpsRoutes(router, d)
	AddProductRoutes(router, d)
	AddCartRoutes(router, d)
	AddOrderRoutes(router, d)
}

// wrap applies the middleware every route gets: metrics first, then rate limiting.
func wrap(d Deps, name string, mws ...middleware.Middleware) func(httprouter.Handle) httprouter.Handle {
	base := []middleware.Middleware{}
	if d.Metrics != nil {
		base = append(base, middleware.Instrument(d.Metrics, name))
	}
	if d.RateLimiter != nil {
		base = append(base, d.RateLimiter.Limit)
	}
	return middleware.Chain(append(base, mws...)...)
}

func AddOpsRoutes(router *httprouter.Router, d Deps) {
	router.GET("/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
}

func AddProductRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/products", wrap(d, "products.list")(d.Products.List))
	router.GET("/api/products/:id", wrap(d, "products.get")(d.Products.Get))
}

func AddCartRoutes(router *httprouter.Router, d Deps) {
	session := cart.Session(d.CartTTL, d.SecureCookies)
	optional := middleware.OptionalAuth(d.Resolver)

	router.GET("/api/cart", wrap(d, "cart.get", optional, session)(d.Cart.GetCart))
	router.DELETE("/api/cart", wrap(d, "cart.clear", optional, session)(d.Cart.Clear))
	router.POST("/api/cart/items", wrap(d, "cart.add", optional, session)(d.Cart.AddItem))
	router.PUT("/api/cart/items/:productId", wrap(d, "cart.update", optional, session)(d.Cart.UpdateItem))
	router.DELETE("/api/cart/items/:productId", wrap(d, "cart.remove", optional, session)(d.Cart.RemoveItem))
	router.POST("/api/cart/checkout",
		wrap(d, "cart.checkout",
			middleware.Authenticate(d.Resolver),
			session,
			middleware.Idempotent(d.Idempotency, 24*time.Hour),
		)(d.Cart.Checkout),
	)
}

func AddOrderRoutes(router *httprouter.Router, d Deps) {
	auth := middleware.Authenticate(d.Resolver)

	router.POST("/api/orders",
		wrap(d, "orders.create", auth, middleware.Idempotent(d.Idempotency, 24*time.Hour))(d.Orders.Create),
	)
	router.GET("/api/orders", wrap(d, "orders.list", auth)(d.Orders.List))
	router.GET("/api/myorders", wrap(d, "orders.mine", auth)(d.Orders.Mine))
	router.GET("/api/orders/:id", wrap(d, "orders.get", auth)(d.Orders.Get))
	router.GET("/api/orders/:id/invoice", wrap(d, "orders.invoice", auth)(d.Orders.Invoice))
	router.PUT("/api/orders/:id/deliver", wrap(d, "orders.deliver", auth, middleware.RequireAdmin)(d.Orders.Deliver))

	router.GET("/api/admin/orders/live", middleware.Chain(auth, middleware.RequireAdmin)(d.Orders.Live))
}
