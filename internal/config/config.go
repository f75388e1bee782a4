package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DatePolicy controls what the importer does with rows whose date cell
// cannot be parsed.
const (
	DatePolicySubstitute = "substitute"
	DatePolicyReject     = "reject"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	TopProductLimit       int
	MaxFieldLength        int
	ImportBatchSize       int
	MaxUploadBytes        int64
	DatePolicy            string
	FallbackEncodings     []string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL := getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1)
	topLimit := getEnvInt("TOP_PRODUCT_LIMIT", 5, 1)
	maxField := getEnvInt("MAX_FIELD_LENGTH", 120, 8)
	batchSize := getEnvInt("IMPORT_BATCH_SIZE", 500, 1)
	maxUpload := int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20, 1024))

	datePolicy := strings.ToLower(strings.TrimSpace(getEnv("DATE_POLICY", DatePolicySubstitute)))
	if datePolicy != DatePolicySubstitute && datePolicy != DatePolicyReject {
		datePolicy = DatePolicySubstitute
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		TopProductLimit:       topLimit,
		MaxFieldLength:        maxField,
		ImportBatchSize:       batchSize,
		MaxUploadBytes:        maxUpload,
		DatePolicy:            datePolicy,
		FallbackEncodings:     getEnvList("FALLBACK_ENCODINGS", []string{"windows-1252", "iso-8859-1"}),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parts := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}

func getEnvInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}
