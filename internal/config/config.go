package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIBaseURL            string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	Username              string
	Password              string
	RefreshPeriod         time.Duration
	DebounceWindow        time.Duration
	DefaultRangeMode      string
	ProductCacheTTL       time.Duration
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	refreshMS, err := strconv.Atoi(getEnv("REFRESH_PERIOD_MS", "20000"))
	if err != nil || refreshMS < 1 {
		refreshMS = 20000
	}
	debounceMS, err := strconv.Atoi(getEnv("DEBOUNCE_MS", "120"))
	if err != nil || debounceMS < 1 {
		debounceMS = 120
	}
	cacheSeconds, err := strconv.Atoi(getEnv("PRODUCT_CACHE_TTL_SECONDS", "60"))
	if err != nil || cacheSeconds < 1 {
		cacheSeconds = 60
	}

	cfg := Config{
		APIBaseURL:            strings.TrimSpace(os.Getenv("API_URL")),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		Username:              strings.TrimSpace(os.Getenv("MITIENDA_USERNAME")),
		Password:              os.Getenv("MITIENDA_PASSWORD"),
		RefreshPeriod:         time.Duration(refreshMS) * time.Millisecond,
		DebounceWindow:        time.Duration(debounceMS) * time.Millisecond,
		DefaultRangeMode:      getEnv("DEFAULT_RANGE_MODE", "7d"),
		ProductCacheTTL:       time.Duration(cacheSeconds) * time.Second,
	}

	return cfg
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
