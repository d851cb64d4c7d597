package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type CatalogSourceKind string

const (
	CatalogSourceFile  CatalogSourceKind = "file"
	CatalogSourceMongo CatalogSourceKind = "mongo"
	CatalogSourceRedis CatalogSourceKind = "redis"
)

type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	CatalogSource   CatalogSourceKind
	CatalogPath     string
	CatalogTimeout  time.Duration
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	RedisURL        string
	CatalogRedisKey string
	RateLimitRPS    float64
	RateLimitBurst  int
	DefaultLang     string
	CORSOrigins     []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":5000"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		CatalogSource:   parseCatalogSource(getEnv("CATALOG_SOURCE", string(CatalogSourceFile))),
		CatalogPath:     getEnv("CATALOG_PATH", "data/ingredients.json"),
		CatalogTimeout:  time.Duration(getEnvInt("CATALOG_LOAD_TIMEOUT_SECONDS", 15)) * time.Second,
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "recipebook"),
		MongoCollection: getEnv("MONGO_COLLECTION", "ingredients"),
		RedisURL:        getEnv("REDIS_URL", ""),
		CatalogRedisKey: getEnv("CATALOG_REDIS_KEY", "ingredients:catalog"),
		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 100),
		DefaultLang:     strings.ToLower(getEnv("DEFAULT_LANG", "es")),
		CORSOrigins:     parseCSV(getEnv("CORS_ORIGINS", "*")),
	}
}

// ClientConfig configures the command line client of the ingredient API.
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	Lang           string
	LogLevel       string
}

func LoadClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        strings.TrimRight(getEnv("INGREDIENTS_API_URL", "http://localhost:5000"), "/"),
		RequestTimeout: time.Duration(getEnvInt("INGREDIENTS_TIMEOUT_SECONDS", 10)) * time.Second,
		Lang:           strings.ToLower(getEnv("INGREDIENTS_LANG", "es")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "warn")),
	}
}

func parseCatalogSource(raw string) CatalogSourceKind {
	switch CatalogSourceKind(strings.ToLower(strings.TrimSpace(raw))) {
	case CatalogSourceMongo:
		return CatalogSourceMongo
	case CatalogSourceRedis:
		return CatalogSourceRedis
	default:
		return CatalogSourceFile
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
