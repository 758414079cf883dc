package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/MikeMC777/medistore/internal/account"
	"github.com/MikeMC777/medistore/internal/cart"
	"github.com/MikeMC777/medistore/internal/checkout"
	"github.com/MikeMC777/medistore/internal/config"
	"github.com/MikeMC777/medistore/internal/database"
	"github.com/MikeMC777/medistore/internal/events"
	"github.com/MikeMC777/medistore/internal/health"
	"github.com/MikeMC777/medistore/internal/order"
	"github.com/MikeMC777/medistore/internal/product"
	"github.com/MikeMC777/medistore/internal/promo"
)

const healthInterval = 15 * time.Second

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatalf("[db] migrate: %v", err)
		}
	}
	pool, err := database.NewPool(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("[db] %v", err)
	}
	defer pool.Close()

	probes := map[string]health.Probe{"postgres": pool.Ping}

	var tokens checkout.TokenStore
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("[redis] parse url: %v", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		tokens = checkout.NewRedisTokenStore(rdb, cfg.IdempotencyTTL)
		probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		log.Printf("[redis] REDIS_URL not set, duplicate-submission guard disabled")
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrdersTopic)
	} else {
		log.Printf("[events] KAFKA_BROKERS not set, order events are dropped")
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	products := product.NewPGRepo(pool)
	orders := order.NewPGRepo(pool)
	promos := promo.NewPGRepo(pool)
	carts := cart.NewService(cart.NewPGStore(pool), products, cfg.CartPreviewTaxRate, cfg.CartPreviewDeliveryFee)

	checkoutSvc := checkout.NewService(checkout.Deps{
		Catalog:  products,
		Carts:    carts,
		Promos:   promos,
		Accounts: account.NewPGRepo(pool),
		Orders:   orders,
		Tx:       checkout.NewPGStore(pool),
		Tokens:   tokens,
		Events:   publisher,
		Metrics:  checkout.NewMetrics(reg),
	}, checkout.Options{
		TaxRate:   cfg.CheckoutTaxRate,
		LocalArea: cfg.LocalDeliveryArea,
	})

	checker := health.New(probes)
	go checker.Run(ctx, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		log.Fatalf("[grpc] listen %s: %v", cfg.GRPCHealthAddr, err)
	}
	gs := grpc.NewServer()
	checker.Register(gs)
	go func() {
		log.Printf("[grpc] health listening on %s", cfg.GRPCHealthAddr)
		if err := gs.Serve(lis); err != nil {
			log.Printf("[grpc] serve: %v", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: newRouter(app{
			products: products,
			orders:   orders,
			cart:     carts,
			checkout: checkoutSvc,
			health:   checker,
			registry: reg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("storefront listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[http] %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	checker.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[http] shutdown: %v", err)
	}
	gs.GracefulStop()
}
