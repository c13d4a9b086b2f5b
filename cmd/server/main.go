/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the order flow server: production orders, the
  quantity ledger and sales provisioning over HTTP. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logger and SQLite store
  3. Connect Redis when REDIS_ADDR is set (events, locks, rate limits)
  4. Wire catalog -> ledger -> production -> sales
  5. Start the periodic auditor and the HTTP server

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database
  -dev     Enable POST /api/admin/reset

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the auditor, close Redis and the database

SEE ALSO:
  - config/config.go: environment keys
  - api/server.go: router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/warp/orderflow/api"
	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/config"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/lock"
	"github.com/warp/orderflow/notify"
	"github.com/warp/orderflow/production"
	"github.com/warp/orderflow/sales"
	"github.com/warp/orderflow/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	dev := flag.Bool("dev", false, "enable destructive admin endpoints")
	flag.Parse()

	logger := config.NewLogger(cfg.Log)
	log := logger.WithField("component", "server")
	component := func(name string) *logrus.Entry { return logger.WithField("component", name) }

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	ctx := context.Background()
	rdb, err := config.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Domain wiring
	variants := catalog.NewResolver(store, core.SystemClock{})
	ledger := inventory.NewLedger(store, variants, inventory.WithLogger(component("inventory")))

	orders := production.NewService(store, variants, ledger.Finished(), production.Config{
		ProductionLocation: inventory.LocationID(cfg.ProductionLocation),
		OrdersURL:          cfg.OrdersURL,
	})
	orders.SetLogger(component("production"))

	notifiers := notify.Fanout{notify.NewLogNotifier(component("notify"))}
	if rdb != nil {
		notifiers = append(notifiers, notify.NewRedisNotifier(rdb, cfg.NotifyChannel))
	}
	orders.SetNotifier(notifiers)

	expander := sales.NewExpander(store, variants)
	provisioner := sales.NewProvisioner(store, expander, ledger.Finished(), orders, sales.ProvisionerConfig{
		StockLocation: inventory.LocationID(cfg.StockLocation),
	})
	provisioner.SetLogger(component("provisioning"))
	if rdb != nil {
		locker := lock.NewRedisLocker(rdb, lock.DefaultTTL)
		locker.SetLogger(component("lock"))
		provisioner.SetLocker(locker)
	}
	orders.SetLineSyncer(provisioner)

	salesSvc := sales.NewService(store, expander, provisioner)
	salesSvc.SetLogger(component("sales"))

	auditor := api.NewAuditor(orders, ledger)
	auditor.Interval = cfg.AuditInterval
	auditor.SetLogger(component("auditor"))
	auditor.Start()
	defer auditor.Stop()

	deps := api.Deps{
		Catalog:     store,
		Variants:    variants,
		Ledger:      ledger,
		Orders:      orders,
		Sales:       salesSvc,
		Provisioner: provisioner,
		Auditor:     auditor,
		Log:         component("api"),
	}
	if *dev {
		deps.Reset = store.Reset
	}
	handler := api.NewHandler(deps)

	var limiterStore limiter.Store
	if rdb != nil {
		limiterStore, err = sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "orderflow:limiter"})
		if err != nil {
			log.WithError(err).Fatal("failed to create rate limit store")
		}
	}

	// Create router
	router, err := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins:  cfg.CORSOrigins,
		RateLimit:    cfg.RateLimit,
		LimiterStore: limiterStore,
		Log:          component("http"),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build router")
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":  *port,
			"db":    *dbPath,
			"redis": cfg.Redis.Enabled(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}
