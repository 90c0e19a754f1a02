package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/mygros-backend/api/controllers"
	"github.com/angelmondragon/mygros-backend/api/routes"
	"github.com/angelmondragon/mygros-backend/internal/accessrequests"
	"github.com/angelmondragon/mygros-backend/internal/auth"
	"github.com/angelmondragon/mygros-backend/internal/cart"
	"github.com/angelmondragon/mygros-backend/internal/checkout"
	"github.com/angelmondragon/mygros-backend/internal/contact"
	"github.com/angelmondragon/mygros-backend/internal/messages"
	"github.com/angelmondragon/mygros-backend/internal/notifications"
	"github.com/angelmondragon/mygros-backend/internal/orders"
	product "github.com/angelmondragon/mygros-backend/internal/products"
	"github.com/angelmondragon/mygros-backend/internal/promo"
	"github.com/angelmondragon/mygros-backend/internal/tracking"
	"github.com/angelmondragon/mygros-backend/internal/users"
	"github.com/angelmondragon/mygros-backend/internal/visits"
	"github.com/angelmondragon/mygros-backend/pkg/auth/session"
	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/instance"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/metrics"
	"github.com/angelmondragon/mygros-backend/pkg/migrate"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/redis"
)

const checkoutLockTTL = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.ForService("api", cfg.App)

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics := metrics.NewDomainMetrics(promRegistry)

	params, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager, domainMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	params.Config = cfg
	params.Logger = logg
	params.Store = redisClient
	params.Sessions = sessionManager
	params.Metrics = metrics.NewHTTPMetrics(promRegistry)
	params.Gatherer = promRegistry
	params.Readiness = map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID("api"),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	domainMetrics *metrics.DomainMetrics,
) (routes.Params, error) {
	var p routes.Params
	gdb := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	userRepo := users.NewRepository(gdb)
	usersSvc, err := users.NewService(userRepo)
	if err != nil {
		return p, err
	}
	p.Users = usersSvc

	p.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return p, err
	}

	p.AccessRequests, err = accessrequests.NewService(accessrequests.NewRepository(gdb), dbClient, outboxSvc)
	if err != nil {
		return p, err
	}
	p.Register, err = auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		AccessRequests: p.AccessRequests,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return p, err
	}

	p.Products, err = product.NewService(product.NewRepository(gdb), dbClient)
	if err != nil {
		return p, err
	}
	p.Contact, err = contact.NewService(contact.NewRepository(gdb), logg)
	if err != nil {
		return p, err
	}

	cartRepo := cart.NewRepository(gdb)
	p.Cart, err = cart.NewService(cartRepo, dbClient)
	if err != nil {
		return p, err
	}

	schedule, err := orders.NewSchedule(cfg.Delivery)
	if err != nil {
		return p, err
	}
	p.Orders, err = orders.NewService(orders.NewRepository(gdb), dbClient, outboxSvc, schedule, domainMetrics)
	if err != nil {
		return p, err
	}
	p.Checkout, err = checkout.NewService(dbClient, cartRepo, p.Orders, checkout.NewRedisLocker(redisClient, checkoutLockTTL))
	if err != nil {
		return p, err
	}

	machine, err := tracking.NewMachine(cfg.Tracking)
	if err != nil {
		return p, err
	}
	p.Tracking, err = tracking.NewService(tracking.NewRepository(gdb), dbClient, outboxSvc, machine, domainMetrics)
	if err != nil {
		return p, err
	}

	p.Promo, err = promo.NewService(promo.NewRepository(gdb), dbClient)
	if err != nil {
		return p, err
	}
	p.Messages, err = messages.NewService(messages.NewRepository(gdb), dbClient, outboxSvc)
	if err != nil {
		return p, err
	}
	p.Visits, err = visits.NewService(visits.NewRepository(gdb), dbClient)
	if err != nil {
		return p, err
	}
	p.Notifications, err = notifications.NewService(notifications.NewRepository(gdb))
	if err != nil {
		return p, err
	}
	return p, nil
}
