package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"jobmatch-service/internal/account"
	"jobmatch-service/internal/engagement"
	"jobmatch-service/internal/handler"
	"jobmatch-service/internal/jobs"
	"jobmatch-service/internal/match"
	"jobmatch-service/internal/middleware"
	"jobmatch-service/internal/model"
	"jobmatch-service/internal/notify"
	"jobmatch-service/internal/rating"
	"jobmatch-service/internal/store"
	"jobmatch-service/internal/store/postgres"
	"jobmatch-service/pkg/clock"
	"jobmatch-service/pkg/config"
	"jobmatch-service/pkg/database"
	"jobmatch-service/pkg/jwtutil"
	"jobmatch-service/pkg/logger"
	"jobmatch-service/prometheus"
)

const demoPassword = "password123"

func main() {
	port := flag.String("port", "", "listen port (overrides SERVER_PORT)")
	driver := flag.String("store", "", "store driver: memory or postgres (overrides STORE_DRIVER)")
	seed := flag.Bool("seed", false, "load demo employers and jobs on startup")
	flag.Parse()

	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if *seed {
		cfg.Store.Seed = true
	}
	if err := cfg.Validate(); err != nil {
		panic("Invalid configuration: " + err.Error())
	}

	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer func() { _ = log.Sync() }()
	log.Info("Starting jobmatch service...", cfg.LogConfig()...)

	metrics := prometheus.NewMetrics(cfg.Metrics.Prefix, nil)
	clk := clock.Real()

	st, closeStore, err := openStore(cfg, metrics, log)
	if err != nil {
		log.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer closeStore()

	var pub notify.Publisher = notify.NopPublisher{}
	if cfg.Broker.URL != "" {
		amqpPub, err := notify.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			log.Fatal("Failed to connect to broker", zap.Error(err))
		}
		pub = amqpPub
		log.Info("Notification broker connected", zap.String("exchange", cfg.Broker.Exchange))
	}
	defer func() { _ = pub.Close() }()

	sink := notify.NewSink(st, pub, clk, log.Named("notify"), metrics)
	quotas := jobs.Quotas{
		model.SubscriptionFree:       cfg.Match.QuotaFree,
		model.SubscriptionPro:        cfg.Match.QuotaPro,
		model.SubscriptionEnterprise: cfg.Match.QuotaEnterprise,
	}
	jobSvc := jobs.NewService(st, match.NewEngine(log.Named("match"), metrics), quotas, clk, log.Named("jobs"))

	h := &handler.Handler{
		ServiceName:   cfg.ServiceName,
		Accounts:      account.NewService(st, clk, log.Named("account"), metrics, cfg.Match.DefaultRadiusKm),
		Jobs:          jobSvc,
		Ledger:        engagement.NewLedger(st, sink, clk, log.Named("engagement"), metrics),
		Ratings:       rating.NewAggregator(st, sink, clk, log.Named("rating"), metrics),
		Notifications: sink,
		JWT:           jwtutil.NewJWTUtil(&cfg.JWT),
	}

	if cfg.Store.Seed {
		n, err := jobSvc.SeedDemoJobs(context.Background(), demoPassword)
		if err != nil {
			log.Fatal("Failed to seed demo jobs", zap.Error(err))
		}
		log.Info("Demo data loaded", zap.Int("jobs", n))
	}

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(metrics.Middleware())

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	h.Register(e)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		ExposedHeaders:   []string{echo.HeaderXRequestID},
		AllowCredentials: false,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: corsHandler.Handler(e),
	}

	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// openStore returns the configured backend and a func releasing it.
func openStore(cfg *config.Config, metrics *prometheus.Metrics, log *zap.Logger) (store.Store, func(), error) {
	if cfg.Store.Driver != "postgres" {
		log.Info("Using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	db, err := database.InitDB(&cfg.DB, log)
	if err != nil {
		return nil, nil, err
	}
	pg := postgres.New(db, metrics, log.Named("store"))
	if err := pg.Migrate(context.Background()); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	log.Info("Database connection established")
	return pg, func() {
		if err := database.Close(db); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}, nil
}
