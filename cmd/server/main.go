package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"studentfees/internal/app"
	"studentfees/internal/config"
	"studentfees/internal/email"
	"studentfees/internal/events"
	"studentfees/internal/handler"
	internalRedis "studentfees/internal/redis"
	"studentfees/internal/repository"
	"studentfees/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// Missing credentials only fail the calls that need them.
		slog.Warn("configuration incomplete", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic first so the database and Redis clients can be instrumented.
	nrApp := app.NewNewRelic(cfg.NewRelic)

	store, closeStore, err := app.NewStore(ctx, cfg, nrApp)
	if err != nil {
		slog.Error("failed to initialize store", slog.String("driver", cfg.Store.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()
	slog.Info("store ready", slog.String("driver", cfg.Store.Driver))

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			slog.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
	}

	var publisher *events.KafkaPublisher
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.PaymentTopic)
		defer publisher.Close()
	}

	server, callbacks := wireServer(cfg, store, redisClient, publisher, nrApp)

	go func() {
		slog.Info("starting server", slog.String("port", cfg.Server.Port), slog.String("callback_url", cfg.Mpesa.CallbackURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.Any("error", err))
	}

	// Let receipt emails and payment events already dispatched finish
	// before the publisher and store close.
	drained := make(chan struct{})
	go func() {
		callbacks.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(30 * time.Second):
		slog.Warn("payment notifications still running at shutdown")
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	slog.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server together with
// the callback service, whose notifications are drained on shutdown. store,
// redisClient, publisher and nrApp may each be nil.
func wireServer(cfg *config.Config, store repository.Store, redisClient *redis.Client, publisher *events.KafkaPublisher, nrApp *newrelic.Application) (*http.Server, *service.CallbackService) {
	client, signer := app.NewProviderClient(cfg.Mpesa, nrApp)

	var cache service.TransactionCache
	if redisClient != nil {
		cache = internalRedis.NewCacheStore(redisClient, cfg.Redis.CacheTTL)
	}

	var mailer service.Mailer
	if cfg.Email.Enabled() {
		mailer = email.NewMailer(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			Sender:   cfg.Email.Sender,
		})
	}

	var eventPublisher service.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
	}

	// Initialize services.
	receiptService := service.NewReceiptService()
	notificationService := service.NewNotificationService(mailer, eventPublisher, receiptService)
	paymentService := service.NewPaymentService(client, client, signer, store, cache, service.PaymentConfig{
		CallbackURL:        cfg.Mpesa.CallbackURL,
		AccountReference:   cfg.Mpesa.AccountReference,
		TransactionDesc:    cfg.Mpesa.TransactionDesc,
		TransactionType:    cfg.Mpesa.TransactionType,
		RequirePersistence: cfg.Store.RequirePersistence,
	})
	callbackService := service.NewCallbackService(store, cache, notificationService)
	accountService := service.NewAccountService(store)

	router := app.NewRouter(app.RouterDeps{
		MpesaHandler:   handler.NewMpesaHandler(paymentService, callbackService),
		AccountHandler: handler.NewAccountHandler(accountService),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, callbackService
}
