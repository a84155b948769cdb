package config

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/rohits-web03/planrelay/internal/repositories"
	"github.com/rohits-web03/planrelay/internal/rpa"
)

type RPAConfig struct {
	BaseURL         string
	TokenURL        string
	ClientID        string
	ClientSecret    string
	PartnerID       string
	ChunkSize       int64
	PollInterval    time.Duration
	PollMaxAttempts int
	RequestTimeout  time.Duration
}

func (c RPAConfig) Credentials() rpa.Credentials {
	return rpa.Credentials{
		TokenURL:     c.TokenURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		PartnerID:    c.PartnerID,
	}
}

type Config struct {
	DB_URL          string
	Port            string
	Environment     string
	LogLevel        slog.Level
	StorageDir      string
	HardwareCatalog string
	MaxUploadBytes  int64
	CorsConfig      cors.Options
	RPA             RPAConfig
	R2              repositories.R2Config
}

var Envs = initConfig()

func initConfig() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("No env file found", "path", envFile)
	}

	return Config{
		DB_URL:          getEnv("DB_URL", "sqlite:planrelay.db"),
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENV", "development"),
		LogLevel:        parseLevel(getEnv("LOG_LEVEL", "info")),
		StorageDir:      getEnv("STORAGE_DIR", "data"),
		HardwareCatalog: getEnv("HARDWARE_CATALOG", "hardware.yaml"),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 2<<30),
		CorsConfig:      CorsConfig(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RPA: RPAConfig{
			BaseURL:         getEnv("RPA_BASE_URL", ""),
			TokenURL:        getEnv("RPA_TOKEN_URL", ""),
			ClientID:        getEnv("RPA_CLIENT_ID", ""),
			ClientSecret:    getEnv("RPA_CLIENT_SECRET", ""),
			PartnerID:       getEnv("RPA_PARTNER_ID", ""),
			ChunkSize:       getEnvInt64("RPA_CHUNK_SIZE", rpa.DefaultChunkSize),
			PollInterval:    getEnvDuration("RPA_POLL_INTERVAL", rpa.DefaultPollInterval),
			PollMaxAttempts: int(getEnvInt64("RPA_POLL_MAX_ATTEMPTS", rpa.DefaultPollMaxAttempts)),
			RequestTimeout:  getEnvDuration("RPA_REQUEST_TIMEOUT", 60*time.Second),
		},
		R2: repositories.R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", ""),
			Region:          getEnv("R2_REGION", "auto"),
			Endpoint:        getEnv("R2_ENDPOINT", ""),
		},
	}
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func CorsConfig(origins string) cors.Options {
	return cors.Options{
		AllowedOrigins:   strings.Split(origins, ","),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}
