package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	AdminAPIKey string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeBaseURL       string

	CurrencyCode      string
	TaxRateBps        int
	ShippingRatesPath string
	AllowedCountries  []string
	DefaultCountry    string

	PublicBaseURL string

	CartTTL          time.Duration
	CatalogCacheTTL  time.Duration
	WebhookReplayTTL time.Duration
	IdempotencyTTL   time.Duration

	QuoteRateLimitMax    int
	QuoteRateLimitWindow time.Duration

	EmailEnabled  bool
	EmailFrom     string
	SellerEmail   string
	ResendAPIKey  string
	ResendBaseURL string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AdminAPIKey: strings.TrimSpace(k.String("ADMIN_API_KEY")),

		StripeSecretKey:     strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),
		StripeBaseURL:       strings.TrimSpace(k.String("STRIPE_BASE_URL")),

		CurrencyCode:      valueOrDefault(k.String("CURRENCY_CODE"), "EUR"),
		TaxRateBps:        intOrDefault(k, "PRICING_TAX_RATE_BPS", 600),
		ShippingRatesPath: strings.TrimSpace(k.String("SHIPPING_RATES_PATH")),
		AllowedCountries:  splitAndTrim(valueOrDefault(k.String("CHECKOUT_ALLOWED_COUNTRIES"), "BE,NL,DE,FR,LU,AT,ES,IT,DK,PL,CZ")),
		DefaultCountry:    valueOrDefault(k.String("CHECKOUT_DEFAULT_COUNTRY"), "BEL"),

		PublicBaseURL: valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:3000"),

		CartTTL:          parseDuration(k.String("CART_TTL"), "168h"),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		WebhookReplayTTL: parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "2h"),

		QuoteRateLimitMax:    intOrDefault(k, "QUOTE_RATE_LIMIT_MAX", 60),
		QuoteRateLimitWindow: parseDuration(k.String("QUOTE_RATE_LIMIT_WINDOW"), "1m"),

		EmailEnabled:  parseBool(valueOrDefault(k.String("EMAIL_ENABLED"), "false")),
		EmailFrom:     valueOrDefault(k.String("EMAIL_FROM"), "Chilisaus.be <noreply@chilisaus.be>"),
		SellerEmail:   valueOrDefault(k.String("SELLER_EMAIL"), "sales@chilisaus.be"),
		ResendAPIKey:  strings.TrimSpace(k.String("RESEND_API_KEY")),
		ResendBaseURL: valueOrDefault(k.String("RESEND_BASE_URL"), "https://api.resend.com"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.TaxRateBps <= 0 || cfg.TaxRateBps >= 10000 {
		return nil, fmt.Errorf("PRICING_TAX_RATE_BPS out of range: %d", cfg.TaxRateBps)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(k *koanf.Koanf, key string, fallback int) int {
	if strings.TrimSpace(k.String(key)) == "" {
		return fallback
	}
	return k.Int(key)
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests lets tests override environment variables without leaking
// changes into the process environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
