package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appDiscount "github.com/threadline/fulfillment/internal/application/discount"
	appOrder "github.com/threadline/fulfillment/internal/application/order"
	"github.com/threadline/fulfillment/internal/application/stock"
	appTracking "github.com/threadline/fulfillment/internal/application/tracking"
	"github.com/threadline/fulfillment/internal/infrastructure/bus"
	"github.com/threadline/fulfillment/internal/infrastructure/carrier"
	"github.com/threadline/fulfillment/internal/infrastructure/id"
	"github.com/threadline/fulfillment/internal/infrastructure/memory"
	"github.com/threadline/fulfillment/internal/infrastructure/notify"
	"github.com/threadline/fulfillment/internal/infrastructure/observability/oteltrace"
	"github.com/threadline/fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/threadline/fulfillment/internal/infrastructure/observability/telemetry"
	"github.com/threadline/fulfillment/internal/infrastructure/observability/zaplogger"
	paymentsim "github.com/threadline/fulfillment/internal/infrastructure/payment"
	"github.com/threadline/fulfillment/internal/infrastructure/sweeper"
	"github.com/threadline/fulfillment/internal/infrastructure/trackingstore"
	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/pkg/config"
	httppresentation "github.com/threadline/fulfillment/internal/presentation/http"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	baseLogger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New(cfg.ServiceName, "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MExternalRequests: registry.Counter(
			string(observability.MExternalRequests),
			"Total number of calls to external peers.",
			"peer", "endpoint", "outcome",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			nil,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			nil,
			"method", "route", "status",
		),
		observability.MExternalRequestDuration: registry.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of external calls in seconds.",
			nil,
			"peer", "endpoint",
		),
	}
	tel := telemetry.New(oteltrace.New(cfg.ServiceName), baseLogger, counters, histograms)
	logger := tel.Logger()

	productRepo := memory.NewProductRepository()
	orderRepo := memory.NewOrderRepository()
	discountRepo := memory.NewDiscountRepository()
	counter := memory.NewCounter()
	cart := memory.NewCart()
	idGenerator := id.NewUUIDGenerator()

	carrierClient := carrier.New(carrier.Config{
		BaseURL:       cfg.Carrier.BaseURL,
		Email:         cfg.Carrier.Email,
		Password:      cfg.Carrier.Password,
		PickupName:    cfg.Carrier.PickupName,
		Timeout:       cfg.Carrier.Timeout,
		RefreshBuffer: cfg.Carrier.RefreshBuffer,
	}, nil, tel)

	var trackingStore appTracking.Store
	if cfg.Tracking.Backend == "redis" {
		redisStore := trackingstore.NewRedis(cfg.Tracking.RedisAddr, cfg.Tracking.TTL)
		defer func() { _ = redisStore.Close() }()
		trackingStore = redisStore
	} else {
		trackingStore = trackingstore.NewMemory(cfg.Tracking.TTL)
	}
	trackingService := appTracking.NewService(trackingStore, carrierClient, logger)

	eventBus := bus.New(logger)
	eventBus.Start(context.Background())
	defer eventBus.Stop(context.Background())

	notifyWorker := notify.New(eventBus, notify.NewLoggingDispatcher(logger), tel)
	notifyWorker.Start()

	stockLedger := stock.NewLedger(productRepo, logger)
	discountResolver := appDiscount.NewResolver(discountRepo, productRepo, idGenerator, logger)

	orderService := appOrder.NewService(appOrder.Deps{
		Orders:      orderRepo,
		Counter:     counter,
		Products:    productRepo,
		Ledger:      stockLedger,
		Pricer:      discountResolver,
		IDGen:       idGenerator,
		Gateway:     carrierClient,
		Redirect:    paymentsim.NewRedirectSim("https://checkout.threadline.example", 0.9),
		Intent:      paymentsim.NewIntentSim(0.9),
		Cart:        cart,
		Publisher:   eventBus,
		DeliveryFee: cfg.DeliveryFee,
		Tel:         tel,
	})

	sweepWorker := sweeper.New(
		discountResolver,
		orderService,
		cfg.Sweep.DiscountInterval,
		cfg.Sweep.OrderInterval,
		cfg.Sweep.RetentionWindow,
		logger,
	)
	sweepWorker.Start(context.Background())
	defer sweepWorker.Stop(context.Background())

	handler := httppresentation.NewHandler(
		orderService,
		discountResolver,
		trackingService,
		productRepo,
		cfg.Sweep.RetentionWindow,
		tel,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("http_server_stopped")
	}
}
