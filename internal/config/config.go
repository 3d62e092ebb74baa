// Package config loads the service configuration from environment
// variables, with defaults suitable for local development.
package config

import "os"

type Config struct {
	Addr       string
	RedisAddr  string
	SQLitePath string
	FeedFile   string

	SessionPrefix string

	PayPalClientID string
	PayPalSecret   string
	PayPalAPIBase  string

	NetsAPIBase   string
	NetsAPIKey    string
	NetsProjectID string
}

func Load() Config {
	return Config{
		Addr:       ":" + getEnv("PORT", "8080"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		SQLitePath: getEnv("SQLITE_PATH", "checkout.db"),
		FeedFile:   getEnv("ORDER_FEED_FILE", "orders.json"),

		SessionPrefix: getEnv("SESSION_PREFIX", "checkout"),

		PayPalClientID: os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalSecret:   os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalAPIBase:  os.Getenv("PAYPAL_API_BASE"),

		NetsAPIBase:   getEnv("NETS_API_BASE", "https://sandbox.nets.openapipaas.com/api/v1/common/payments"),
		NetsAPIKey:    os.Getenv("NETS_API_KEY"),
		NetsProjectID: os.Getenv("NETS_PROJECT_ID"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
