package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chilisaus/storefront-api/db"
	"github.com/chilisaus/storefront-api/internal/cart"
	"github.com/chilisaus/storefront-api/internal/catalog"
	"github.com/chilisaus/storefront-api/internal/checkout"
	"github.com/chilisaus/storefront-api/internal/common"
	"github.com/chilisaus/storefront-api/internal/config"
	"github.com/chilisaus/storefront-api/internal/emails"
	"github.com/chilisaus/storefront-api/internal/events"
	"github.com/chilisaus/storefront-api/internal/health"
	"github.com/chilisaus/storefront-api/internal/lock"
	"github.com/chilisaus/storefront-api/internal/obs"
	"github.com/chilisaus/storefront-api/internal/order"
	"github.com/chilisaus/storefront-api/internal/payment"
	"github.com/chilisaus/storefront-api/internal/pricing"
	"github.com/chilisaus/storefront-api/internal/ratelimit"
	"github.com/chilisaus/storefront-api/internal/resilience"
	"github.com/chilisaus/storefront-api/internal/security"
	"github.com/chilisaus/storefront-api/internal/voucher"

	"github.com/go-playground/validator/v10"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}

	logger := obs.NewLogger(
		envOrDefault("OBS_LOG_FORMAT", "json"),
		envOrDefault("OBS_LOG_LEVEL", "info"),
	)
	logger = logger.With().Str("service", "storefront-api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	httpMetrics := obs.NewHTTPMetrics(
		metricsNamespace,
		obs.ParseBucketsCSV(os.Getenv("OBS_HTTP_LATENCY_BUCKETS_MS")),
		nil,
	)

	tracerShutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "storefront-api",
		Endpoint:      os.Getenv("OBS_OTLP_ENDPOINT"),
		Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "none"),
		SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init tracer")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database url")
	}
	poolCfg.ConnConfig.Tracer = obs.PGXTracer{}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "storefront-api"
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping postgres")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Warn().Err(err).Msg("redis tracing instrumentation")
	}
	if err := redisotel.InstrumentMetrics(rdb); err != nil {
		logger.Warn().Err(err).Msg("redis metrics instrumentation")
	}

	asynqOpts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpts)
	defer func() { _ = taskClient.Close() }()

	rates, err := pricing.LoadRateTable(cfg.ShippingRatesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load shipping rate table")
	}
	estimator := pricing.NewEstimator(pricing.DefaultWeightConfig(), logger)

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:  catalog.NewStore(pool),
		Cache:  catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc})
	catalogAdmin := catalog.NewAdminHandler(catalogSvc)

	voucherSvc := &voucher.Service{Store: voucher.NewStore(pool)}
	voucherAdmin := &voucher.AdminHandler{Svc: voucherSvc}

	cartSvc := &cart.Service{
		Store:    cart.NewStore(pool),
		Products: catalog.NewStore(pool),
		Vouchers: voucherSvc,
		Locks:    &lock.Locker{Client: rdb},
		TTL:      cfg.CartTTL,
	}
	cartHandler := &cart.Handler{
		Svc:       cartSvc,
		Estimator: estimator,
		Rates:     rates,
		TaxBps:    cfg.TaxRateBps,
		Currency:  cfg.CurrencyCode,
	}

	provider := payment.Stripe{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		BaseURL:       cfg.StripeBaseURL,
		Breaker:       resilience.NewBreaker("stripe", 10, 0.5, 30*time.Second),
	}

	checkoutHandler := &checkout.Handler{Svc: &checkout.Service{
		Carts:            cartSvc,
		Estimator:        estimator,
		Rates:            rates,
		Provider:         provider,
		Validate:         validator.New(),
		Currency:         strings.ToLower(cfg.CurrencyCode),
		AllowedCountries: cfg.AllowedCountries,
		DefaultCountry:   cfg.DefaultCountry,
		SuccessURL:       cfg.PublicBaseURL + "/checkout/success",
		CancelURL:        cfg.PublicBaseURL + "/checkout/cancel",
		Logger:           logger,
	}}

	bus := &events.Bus{Notifiers: []events.Notifier{eventLogger{logger}}}

	webhook := &payment.Webhook{
		Provider:  provider,
		Replay:    rdb,
		ReplayTTL: cfg.WebhookReplayTTL,
		Settler:   &payment.PGSettler{Pool: pool, TaxBps: cfg.TaxRateBps, Logger: logger},
		Events:    bus,
		Mailer:    &emails.Enqueuer{Client: taskClient, Logger: logger},
		TaxBps:    cfg.TaxRateBps,
		Logger:    logger,
	}

	orderHandler := &order.Handler{Store: order.NewStore(pool)}

	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}
	quoteLimiter := ratelimit.Middleware(
		ratelimit.SlidingWindow{Client: rdb, Prefix: "rl:quote:"},
		ratelimit.Config{
			Key:    ratelimit.ByClientIP,
			Window: cfg.QuoteRateLimitWindow,
			Max:    cfg.QuoteRateLimitMax,
		},
		func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	)

	healthHandler := &health.Handler{Probes: map[string]health.Probe{
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if envBool("PPROF_ENABLED", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux()))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
		r.Get("/products", catalogHandler.Products)
		r.Get("/products/{slug}", catalogHandler.ProductBySlug)
		r.Get("/brands", catalogHandler.Brands)

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", cartHandler.Create)
			r.Get("/{id}", cartHandler.Get)
			r.Post("/{id}/items", cartHandler.AddItem)
			r.Patch("/{id}/items/{itemId}", cartHandler.UpdateItem)
			r.Delete("/{id}/items/{itemId}", cartHandler.RemoveItem)
			r.Post("/{id}/voucher", cartHandler.ApplyVoucher)
			r.Delete("/{id}/voucher", cartHandler.RemoveVoucher)
			r.With(quoteLimiter).Post("/{id}/quote/shipping", cartHandler.QuoteShipping)
			r.With(quoteLimiter).Post("/{id}/quote/tax", cartHandler.QuoteTax)
		})

		r.With(idem.Middleware).Post("/checkout", checkoutHandler.Create)
		r.Post("/webhooks/stripe", webhook.Handle)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdminKey(cfg.AdminAPIKey, logger))
			r.Get("/orders", orderHandler.List)
			r.Get("/orders/{id}", orderHandler.Get)
			r.Post("/products", catalogAdmin.CreateProduct)
			r.Put("/products/{id}", catalogAdmin.UpdateProduct)
			r.Delete("/products/{id}", catalogAdmin.DeleteProduct)
			r.Post("/brands", catalogAdmin.CreateBrand)
			r.Get("/vouchers", voucherAdmin.List)
			r.Post("/vouchers", voucherAdmin.Create)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	health.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
		return
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

// eventLogger is the default event sink: domain events become structured
// log lines until an outbound integration subscribes.
type eventLogger struct {
	logger zerolog.Logger
}

func (n eventLogger) Notify(_ context.Context, ev events.Event) error {
	n.logger.Info().
		Str("topic", ev.Topic).
		Str("aggregateId", ev.AggregateID.String()).
		RawJSON("payload", ev.Payload).
		Msg("domain event")
	return nil
}

// requireAdminKey guards admin routes with a constant-time key compare.
func requireAdminKey(key string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				logger.Warn().Msg("admin api key not configured, rejecting admin request")
				common.JSONError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED", "admin API is not configured", nil)
				return
			}
			provided := r.Header.Get("X-Admin-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

// protectPprof requires basic auth credentials from the environment before
// exposing the profiler.
func protectPprof(next http.Handler) http.Handler {
	user := os.Getenv("PPROF_USER")
	pass := os.Getenv("PPROF_PASSWORD")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user == "" || pass == "" {
			http.NotFound(w, r)
			return
		}
		gotUser, gotPass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(gotUser), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(gotPass), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
