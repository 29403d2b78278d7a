package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/celi21/feattreatmentschedulingapp/internal/booking"
	"github.com/celi21/feattreatmentschedulingapp/internal/cache"
	"github.com/celi21/feattreatmentschedulingapp/internal/handlers"
	"github.com/celi21/feattreatmentschedulingapp/internal/model"
	"github.com/celi21/feattreatmentschedulingapp/internal/outbox"
	"github.com/celi21/feattreatmentschedulingapp/internal/storage"
	"github.com/celi21/feattreatmentschedulingapp/libs/config"
	"github.com/celi21/feattreatmentschedulingapp/libs/db"
	"github.com/celi21/feattreatmentschedulingapp/libs/httpx"
	"github.com/celi21/feattreatmentschedulingapp/libs/kafkax"
	otelx "github.com/celi21/feattreatmentschedulingapp/libs/otel"
	"github.com/celi21/feattreatmentschedulingapp/libs/runtime"
)

func main() {
	config.LoadDotenv()
	service := config.String("SERVICE_NAME", "bookingd")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		catalog booking.CatalogStore
		appts   booking.AppointmentStore
		checks  []runtime.ReadyCheck
	)

	dbURL := config.String("DATABASE_URL", "")
	if dbURL != "" {
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository(pool)
		store := storage.NewPostgresStore(pool, outboxRepo)
		catalog, appts = store, store
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		brokers := config.String("KAFKA_BROKERS", "")
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)
		if brokers != "" {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
	} else {
		// No database configured: run against an in-memory store with
		// demo data so the API is explorable out of the box.
		logger.Warn("DATABASE_URL not set; using in-memory store with demo data")
		mem := storage.NewMemoryStore()
		seedDemoData(mem)
		catalog, appts = mem, mem
	}

	var rdb *redis.Client
	var availCache *cache.AvailabilityCache
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		availCache = cache.NewAvailabilityCache(rdb, config.Duration("AVAILABILITY_CACHE_TTL", 30*time.Second), logger)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
	}

	engine := booking.NewEngine(catalog, appts, logger, booking.Config{
		SlotDuration: time.Duration(config.Int("SLOT_DURATION_MINUTES", 30)) * time.Minute,
	})
	handler := handlers.NewBookingHandler(engine, availCache, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/v1/availability", handler.Availability)
	mux.HandleFunc("/api/v1/appointments", handler.Appointments)
	mux.HandleFunc("/api/v1/appointments/status", handler.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/cancel", handler.Cancel)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 30*time.Second)),
	}
	if origins := splitList(config.String("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         10 * time.Minute,
		}))
	}
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if rdb != nil {
		limiter := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(limit, time.Minute).Middleware())
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func seedDemoData(mem *storage.MemoryStore) {
	mem.AddBusiness(model.Business{
		ID:       "demo-business",
		Name:     "Demo Clinic",
		Slug:     "demo-clinic",
		Timezone: "America/New_York",
		IsActive: true,
	})
	mem.AddProvider(model.Provider{
		ID:            "demo-provider",
		BusinessID:    "demo-business",
		Name:          "Demo Provider",
		IsActive:      true,
		WorkStartHour: 9,
		WorkEndHour:   17,
	})
	mem.AddService(model.Service{
		ID:           "demo-service",
		BusinessID:   "demo-business",
		Name:         "Consultation",
		DurationMins: 30,
		PriceCents:   0,
		IsActive:     true,
	})
}
