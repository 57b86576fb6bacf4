package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/auth"
	"storefront/cart"
	"storefront/config"
	"storefront/db"
	"storefront/logger"
	"storefront/metrics"
	"storefront/middleware"
	"storefront/mq"
	"storefront/orders"
	"storefront/products"
	"storefront/ratelim"
	"storefront/rdx"
	"storefront/routes"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

// subscriber feeds broker events into the live order hub.
type subscriber interface {
	Run(ctx context.Context, handle mq.Handler) error
}

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service:   "storefront",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: !cfg.IsProduction(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("server stopped cleanly")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	resolver, err := auth.NewResolver(cfg.JWTSecret)
	if err != nil {
		return err
	}

	store, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	orderRepo := orders.NewMongoRepo(store.OrdersCollection)
	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	idempotency := middleware.NewMongoIdempotencyStore(store.IdempotencyCollection)
	if err := idempotency.EnsureIndexes(ctx); err != nil {
		return err
	}

	// Redis carries cart sessions and the default event channel. Development can run
	// without it on process-local carts.
	var (
		conn      *redis.Client
		cartStore cart.Store
	)
	conn, err = rdx.Connect(ctx, rdx.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	switch {
	case err == nil:
		defer conn.Close()
		cartStore = cart.NewRedisStore(conn, cfg.CartTTL)
	case cfg.IsProduction():
		return err
	default:
		log.Warn("redis unavailable, carts are kept in memory", slog.Any("err", err))
		cartStore = cart.NewMemoryStore()
	}

	serverMetrics := metrics.NewServerMetrics("api", nil)
	hub := orders.NewHub(cfg.AllowedOrigins)

	publishers := mq.Fanout{serverMetrics}
	var sub subscriber
	switch {
	case len(cfg.KafkaBrokers) > 0:
		kp := mq.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publishers = append(publishers, kp)
		// every instance needs its own group so each one sees every event
		sub = mq.NewKafkaSubscriber(cfg.KafkaBrokers, cfg.KafkaTopic, "storefront-feed-"+uuid.NewString())
	case conn != nil:
		publishers = append(publishers, mq.NewRedisPublisher(conn, mq.OrderEventsChannel))
		sub = mq.NewRedisSubscriber(conn, mq.OrderEventsChannel)
	default:
		publishers = append(publishers, hub)
	}

	catalog := products.NewMongoCatalog(store.ProductsCollection)
	orderService := orders.NewService(orderRepo, catalog, publishers, 10)
	gate := orders.NewGate(orderService)

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	router := httprouter.New()
	routes.RoutesWrapper(router, routes.Deps{
		RateLimiter:   rateLimiter,
		Resolver:      resolver,
		Metrics:       serverMetrics,
		Idempotency:   idempotency,
		Products:      products.NewHandler(catalog),
		Cart:          cart.NewHandler(cartStore, catalog, gate),
		Orders:        orders.NewHandler(gate, hub),
		CartTTL:       cfg.CartTTL,
		SecureCookies: cfg.IsProduction(),
		Health:        store.Ping,
	})

	// CORS -> security headers -> logging -> router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.IdempotencyHeader, cart.SessionHeader},
		ExposedHeaders:   []string{cart.SessionHeader},
		AllowCredentials: true,
	}).Handler(router)
	handler := middleware.RequestLogger(log)(middleware.SecurityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		rateLimiter.Janitor(bgCtx)
	}()
	if sub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sub.Run(bgCtx, hub.Broadcast); err != nil {
				log.Error("order event subscriber stopped", slog.Any("err", err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server starting", slog.String("addr", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			cancelBg()
			wg.Wait()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	cancelBg()
	wg.Wait()
	return nil
}
