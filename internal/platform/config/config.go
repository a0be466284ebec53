package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	defaultJWTSecret = "defaultsecret"
)

type Config struct {
	APIPort string
	AppEnv  string
	LogFile string
	JWTKey  []byte
	JWTExp  time.Duration

	StoreBackend string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSslMode    string
	DBConnStr    string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ReceiptQueueName string

	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string
	S3KeyPrefix     string
}

// Load reads an optional .env file and then the process environment.
// The returned value is meant to be handed to constructors; nothing here is global.
func Load() (*Config, error) {
	// A missing .env is fine, the environment alone is enough.
	_ = godotenv.Load()

	cfg := &Config{
		APIPort: getEnv("PORT", "5000"),
		AppEnv:  strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		LogFile: getEnv("LOG_FILE", ""),
		JWTKey:  []byte(getEnv("JWT_SECRET", defaultJWTSecret)),
		JWTExp:  getEnvAsDuration("JWT_EXPIRATION", 7*24*time.Hour),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "user"),
		DBPassword:   getEnv("DB_PASSWORD", "password"),
		DBName:       getEnv("DB_NAME", "sweet_shop"),
		DBSslMode:    getEnv("DB_SSLMODE", "disable"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		ReceiptQueueName: getEnv("RECEIPT_QUEUE_NAME", "purchase_receipts_queue"),

		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		S3KeyPrefix:     getEnv("S3_KEY_PREFIX", "sweet-shop/products"),
	}

	cfg.DBConnStr = getEnv("DATABASE_URL", "")
	if cfg.DBConnStr == "" {
		cfg.DBConnStr = "host=" + cfg.DBHost +
			" port=" + cfg.DBPort +
			" user=" + cfg.DBUser +
			" password=" + cfg.DBPassword +
			" dbname=" + cfg.DBName +
			" sslmode=" + cfg.DBSslMode
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWTKey) == 0 {
		return errors.New("config: JWT_SECRET must not be empty")
	}
	if c.IsProduction() && string(c.JWTKey) == defaultJWTSecret {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	if c.JWTExp <= 0 {
		return errors.New("config: JWT_EXPIRATION must be positive")
	}
	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return errors.New("config: STORE_BACKEND must be \"postgres\" or \"memory\"")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// StorageConfigured reports whether enough S3 settings are present to upload images.
func (c *Config) StorageConfigured() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) RedisConfigured() bool {
	return c.RedisAddr != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("168h") or a bare number of hours ("72").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if hours, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(hours) * time.Hour
	}
	return fallback
}
