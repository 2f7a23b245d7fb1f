package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Booking  BookingConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type BookingConfig struct {
	HoldTTL       time.Duration
	CartTTL       time.Duration
	SweepInterval time.Duration
	Currency      string
	// RateLimit is holds per user per minute.
	RateLimit int
}

type AuthConfig struct {
	// Tokens are "token:role:subject" triples.
	Tokens []string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	serverCfg := ServerConfig{
		Host: strEnv("SERVER_HOST", "localhost"),
		Port: serverPort,
	}

	postgresPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	postgresCfg := PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     os.Getenv("POSTGRES_DB"),
		Host:     strEnv("POSTGRES_HOST", "localhost"),
		Port:     postgresPort,
		SSLMode:  strEnv("POSTGRES_SSLMODE", "disable"),
	}
	for name, v := range map[string]string{
		"POSTGRES_USER":     postgresCfg.User,
		"POSTGRES_PASSWORD": postgresCfg.Password,
		"POSTGRES_DB":       postgresCfg.Name,
	} {
		if v == "" {
			return nil, fmt.Errorf("%s: missing %s", op, name)
		}
	}

	redisCfg := RedisConfig{
		Addr:     strEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}

	holdTTL, err := durationEnv("HOLD_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cartTTL, err := durationEnv("CART_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sweepInterval, err := durationEnv("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rateLimit, err := intEnv("HOLD_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bookingCfg := BookingConfig{
		HoldTTL:       holdTTL,
		CartTTL:       cartTTL,
		SweepInterval: sweepInterval,
		Currency:      strEnv("CURRENCY", "USD"),
		RateLimit:     rateLimit,
	}

	var tokens []string
	if raw := os.Getenv("AUTH_TOKENS"); raw != "" {
		tokens = strings.Split(raw, ",")
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Booking:  bookingCfg,
		Auth:     AuthConfig{Tokens: tokens},
	}, nil
}

func strEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
