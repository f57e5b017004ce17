package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
//
// API keys are optional at load time. A missing secret is reported on every
// generation request instead.
type Config struct {
	AppEnv             string
	Port               string
	DefaultLocale      string
	TogetherAPIKey     string
	TogetherBaseURL    string
	TogetherModel      string
	ImgBBAPIKey        string
	ImgBBBaseURL       string
	ImgBBExpiration    int
	PersistenceEnabled bool
	DatabaseURL        string
	ArchiveDir         string
	GeoIPDBPath        string
	CORSAllowedOrigins []string
	UpstreamTimeout    time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		TogetherAPIKey:     strings.TrimSpace(os.Getenv("TOGETHER_API_KEY")),
		TogetherBaseURL:    getEnv("TOGETHER_BASE_URL", "https://api.together.xyz"),
		TogetherModel:      getEnv("TOGETHER_MODEL", "black-forest-labs/FLUX.1-schnell-Free"),
		ImgBBAPIKey:        strings.TrimSpace(os.Getenv("IMGBB_API_KEY")),
		ImgBBBaseURL:       getEnv("IMGBB_BASE_URL", "https://api.imgbb.com"),
		ImgBBExpiration:    getEnvInt("IMGBB_EXPIRATION_SECONDS", 0),
		PersistenceEnabled: getEnvBool("PERSISTENCE_ENABLED", false),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ArchiveDir:         strings.TrimSpace(os.Getenv("ARCHIVE_DIR")),
		GeoIPDBPath:        strings.TrimSpace(os.Getenv("GEOIP_DB_PATH")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		UpstreamTimeout:    time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 60)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
