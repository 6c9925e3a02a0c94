// Package config reads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetenvPositive is GetenvInt restricted to values above zero; anything else
// yields def.
func GetenvPositive(key string, def int) int {
	if n := GetenvInt(key, def); n > 0 {
		return n
	}
	return def
}

func GetenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func GetenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

const defaultStorageWait = 10

// Cart holds everything cmd/cart needs.
type Cart struct {
	Port     string
	LogLevel string

	Backend     string
	Dir         string
	RedisAddr   string
	DatabaseURL string
	StorageWait uint

	CatalogURL string
	JWTSecret  string

	MetricsEnabled bool
	MetricsToken   string
	OTLPEndpoint   string
}

func LoadCart() Cart {
	return Cart{
		Port:     Getenv("PORT", "8084"),
		LogLevel: Getenv("LOG_LEVEL", "info"),

		Backend:     strings.ToLower(Getenv("CART_BACKEND", "file")),
		Dir:         Getenv("CART_DIR", "./data"),
		RedisAddr:   Getenv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StorageWait: uint(GetenvPositive("STORAGE_WAIT", defaultStorageWait)),

		CatalogURL: os.Getenv("CATALOG_URL"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		MetricsEnabled: GetenvBool("METRICS_ENABLED", true),
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

type Catalog struct {
	Port        string
	LogLevel    string
	DatabaseURL string
	StorageWait uint

	MetricsEnabled bool
	MetricsToken   string
}

func LoadCatalog() Catalog {
	return Catalog{
		Port:        Getenv("PORT", "8082"),
		LogLevel:    Getenv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StorageWait: uint(GetenvPositive("STORAGE_WAIT", defaultStorageWait)),

		MetricsEnabled: GetenvBool("METRICS_ENABLED", true),
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
	}
}
