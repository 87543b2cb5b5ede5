package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rogerio-castellano/inventory-sync/internal/alert"
	"github.com/rogerio-castellano/inventory-sync/internal/auth"
	"github.com/rogerio-castellano/inventory-sync/internal/config"
	"github.com/rogerio-castellano/inventory-sync/internal/db"
	api "github.com/rogerio-castellano/inventory-sync/internal/http"
	"github.com/rogerio-castellano/inventory-sync/internal/http/handlers"
	rl "github.com/rogerio-castellano/inventory-sync/internal/http/rate_limiter"
	"github.com/rogerio-castellano/inventory-sync/internal/inventory"
	"github.com/rogerio-castellano/inventory-sync/internal/logging"
	"github.com/rogerio-castellano/inventory-sync/internal/metrics"
	"github.com/rogerio-castellano/inventory-sync/internal/redissvc"
	"github.com/rogerio-castellano/inventory-sync/internal/repo"
)

// @title Inventory Sync API
// @version 1.0
// @description Live per-location inventory views and low stock alerts.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Could not load .env: %v", err)
	}

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// inventory-sync token <owner> prints a bearer token for owner.
	if len(os.Args) == 3 && os.Args[1] == "token" {
		token, err := auth.NewSigner(cfg.Auth.JWTSecret, 24*time.Hour).GenerateToken(os.Args[2])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(token)
		return
	}

	logger := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		ServiceName: "inventory-sync",
		Environment: cfg.Log.Environment,
	})
	slog.SetDefault(logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Server stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	m := metrics.New()

	var rdb *redis.Client
	if cfg.Store.Driver == "redis" || cfg.Alerts.HistoryStore == "redis" {
		client, err := redissvc.Connect(ctx, redissvc.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		rdb = client
		defer rdb.Close()
	}

	store, closeStore, err := openStore(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer closeStore()

	var history alert.History = alert.NewMemoryHistory(cfg.Alerts.HistorySize)
	if cfg.Alerts.HistoryStore == "redis" {
		history = alert.NewRedisHistory(rdb, cfg.Alerts.HistorySize)
	}

	dispatcher, closeDispatcher, err := newDispatcher(cfg, logger.WithComponent("dispatcher").Logger)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	notifier := alert.NewNotifier(alert.NotifierConfig{
		Dispatcher: dispatcher,
		History:    history,
		Metrics:    m,
		Logger:     logger.WithComponent("notifier").Logger,
		QueueSize:  cfg.Alerts.QueueSize,
	})
	defer notifier.Close()

	var gate *alert.Gate
	if cfg.Alerts.Dedupe {
		gate = alert.NewGate()
	}

	items := repo.NewInventoryRepository(store)
	recipients := repo.NewRecipientRepository(store)
	registry := inventory.NewRegistry(repo.NewThresholdRepository(store))

	hub := inventory.NewHub(inventory.HubConfig{
		Items:      items,
		Recipients: recipients,
		Registry:   registry,
		Alerts:     notifier,
		Gate:       gate,
		Metrics:    m,
		Logger:     logger.WithComponent("tracker").Logger,
	})
	defer hub.Close()

	limiter := rl.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Run(ctx)

	server := handlers.NewServer(handlers.ServerConfig{
		Hub:        hub,
		Registry:   registry,
		Recipients: recipients,
		History:    history,
		Logger:     logger.WithComponent("http").Logger,
	})
	router := api.NewRouter(api.RouterConfig{
		Server:  server,
		Signer:  auth.NewSigner(cfg.Auth.JWTSecret, 0),
		Limiter: limiter,
		Metrics: m,
		Logger:  logger.WithComponent("http").Logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		// open event streams end when the process is asked to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("✅ Server running", "addr", cfg.HTTP.Addr, "store", cfg.Store.Driver, "dispatcher", cfg.Alerts.Dispatcher)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Shutting down")
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (repo.DocumentStore, func(), error) {
	switch cfg.Store.Driver {
	case "redis":
		return repo.NewRedisStore(rdb), func() {}, nil

	case "postgres":
		database, err := db.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		store := repo.NewPostgresStore(database, cfg.Postgres.URL)
		if err := store.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		return store, func() { database.Close() }, nil

	case "mongo":
		client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		store := repo.NewMongoStore(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return repo.NewMemoryStore(), func() {}, nil
	}
}

func newDispatcher(cfg *config.Config, logger *slog.Logger) (alert.Dispatcher, func(), error) {
	var (
		d       alert.Dispatcher
		closeFn = func() {}
	)

	switch cfg.Alerts.Dispatcher {
	case "smtp":
		d = alert.NewSMTPDispatcher(alert.SMTPConfig{
			Host:          cfg.SMTP.Host,
			Port:          cfg.SMTP.Port,
			Username:      cfg.SMTP.Username,
			Password:      cfg.SMTP.Password,
			From:          cfg.SMTP.From,
			GatewayDomain: cfg.SMTP.GatewayDomain,
			AuthDisabled:  cfg.SMTP.AuthDisabled,
		})
	case "kafka":
		kd := alert.NewKafkaDispatcher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		d = kd
		closeFn = func() {
			if err := kd.Close(); err != nil {
				logger.Warn("Failed to close kafka writer", "error", err)
			}
		}
	case "log":
		return alert.NewLogDispatcher(logger), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown alert dispatcher %q", cfg.Alerts.Dispatcher)
	}

	return alert.NewBreakerDispatcher(d, alert.BreakerConfig{
		Name:        cfg.Alerts.Dispatcher,
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
	}, logger), closeFn, nil
}
