package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppPort        = "8080"
	defaultBackendURL     = "http://localhost:8080"
	defaultDebounce       = 400 * time.Millisecond
	defaultRequestTimeout = 15 * time.Second
	defaultClientRPS      = 10
	defaultClientBurst    = 20
	defaultCORSOrigin     = "http://localhost:3000"
)

var ErrDatabaseNotConfigured = errors.New("database environment variables not loaded properly")

type Config struct {
	AppEnv  string
	AppPort string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBURL      string

	JWTSecret  string
	CORSOrigin string

	// Synchronizer / client side.
	BackendURL     string
	AccessToken    string
	TokenFile      string
	Debounce       time.Duration
	RequestTimeout time.Duration
	ClientRPS      float64
	ClientBurst    int
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv:         os.Getenv("APP_ENV"),
		AppPort:        getEnv("APP_PORT", defaultAppPort),
		DBHost:         os.Getenv("DB_HOST"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBPort:         os.Getenv("DB_PORT"),
		DBURL:          os.Getenv("DB_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		CORSOrigin:     getEnv("CORS_ORIGIN", defaultCORSOrigin),
		BackendURL:     getEnv("CART_BACKEND_URL", defaultBackendURL),
		AccessToken:    os.Getenv("CART_ACCESS_TOKEN"),
		TokenFile:      os.Getenv("CART_TOKEN_FILE"),
		Debounce:       getMillis("CART_DEBOUNCE_MS", defaultDebounce),
		RequestTimeout: getMillis("CART_REQUEST_TIMEOUT_MS", defaultRequestTimeout),
		ClientRPS:      getFloat("CART_CLIENT_RPS", defaultClientRPS),
		ClientBurst:    getInt("CART_CLIENT_BURST", defaultClientBurst),
	}
}

// UseDatabase reports whether Postgres settings are present.
func (c *Config) UseDatabase() bool {
	return c.DBHost != ""
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() (string, error) {
	if c.DBURL != "" {
		return c.DBURL, nil
	}
	if !c.UseDatabase() {
		return "", ErrDatabaseNotConfigured
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getMillis(key string, fallback time.Duration) time.Duration {
	ms, err := strconv.Atoi(os.Getenv(key))
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
