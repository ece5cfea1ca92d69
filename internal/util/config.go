package util

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultAPIBaseURL     = "http://127.0.0.1:8000/api"
	defaultAPITimeout     = 5 * time.Second
	defaultSignInURL      = "/giris"
	defaultStoreBackend   = "file"
	defaultCredentialFile = ".storefront-credentials.json"
	defaultProfile        = "default"
	defaultLogLevel       = "info"

	defaultServerAddr      = "localhost:8000"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 24 * time.Hour

	RawTokenLength = 32
	JWTLeeWay      = 5 * time.Second
)

// Credential store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

//nolint:gochecknoglobals // validator caches struct metadata, one instance is enough
var validate = validator.New(validator.WithRequiredStructEnabled())

type ClientConfig struct {
	BaseURL     string        `validate:"required,url"`
	Timeout     time.Duration `validate:"gt=0"`
	UserAgent   string
	SignInURL   string `validate:"required"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	WebhookURL  string `validate:"omitempty,url"`
	Credentials CredentialStoreConfig
}

type CredentialStoreConfig struct {
	Backend     string `validate:"oneof=memory file redis postgres"`
	Profile     string `validate:"required"`
	File        string `validate:"required_if=Backend file"`
	DatabaseURL string `validate:"required_if=Backend postgres"`
	Redis       RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

func NewClientConfig() (*ClientConfig, error) {
	cfg := &ClientConfig{
		BaseURL:    getEnvOrDefault("API_BASE_URL", defaultAPIBaseURL),
		Timeout:    parseDurationOrDefault("API_TIMEOUT", defaultAPITimeout),
		UserAgent:  os.Getenv("API_USER_AGENT"),
		SignInURL:  getEnvOrDefault("SIGN_IN_URL", defaultSignInURL),
		LogLevel:   LogLevel(),
		WebhookURL: os.Getenv("INVALIDATION_WEBHOOK_URL"),
		Credentials: CredentialStoreConfig{
			Backend:     getEnvOrDefault("CREDENTIAL_STORE", defaultStoreBackend),
			Profile:     getEnvOrDefault("CREDENTIAL_PROFILE", defaultProfile),
			File:        getEnvOrDefault("CREDENTIAL_FILE", defaultCredentialFile),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Redis: RedisConfig{
				Addr:     os.Getenv("REDIS_ADDR"),
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       parseIntOrDefault("REDIS_DB", 0),
			},
		},
	}

	if cfg.Credentials.Backend == StoreRedis && cfg.Credentials.Redis.Addr == "" {
		return nil, fmt.Errorf("client config: REDIS_ADDR is required for the redis credential store")
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}

	return cfg, nil
}

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:      getEnvOrDefault("SERVER_ADDRESS", defaultServerAddr),
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

type TokenConfig struct {
	JwtSecretKey []byte        `validate:"min=16"`
	AccessTTL    time.Duration `validate:"gt=0"`
	RefreshTTL   time.Duration `validate:"gtfield=AccessTTL"`
}

func NewTokenConfig() (*TokenConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("token config: JWT_SECRET is not set")
	}

	cfg := &TokenConfig{
		JwtSecretKey: []byte(secret),
		AccessTTL:    parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:   parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("token config: %w", err)
	}

	return cfg, nil
}

// LogLevel is LOG_LEVEL or info.
func LogLevel() string {
	return getEnvOrDefault("LOG_LEVEL", defaultLogLevel)
}

func getEnvOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseIntOrDefault(varName string, def int) int {
	if v := os.Getenv(varName); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("Invalid %s: %s, using default %d", varName, v, def)
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
