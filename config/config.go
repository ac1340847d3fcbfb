package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Credentials come from the
// environment (or a .env file); everything else has workable defaults.
type Config struct {
	// Telegram
	TelegramToken string
	VaultChatID   int64 // channel the bot publishes audio into

	// Deezer
	DeezerARL    string // shared upstream credential for the downloader
	DeezerAPIURL string
	MaxBitrate   int // 1 = MP3 128, 3 = MP3 320, 9 = FLAC

	// Downloader
	DeemixPath   string // external downloader binary
	DownloadDir  string // shared staging area for fetched audio
	FetchTimeout time.Duration
	FetchRetries int

	// Vault
	VaultPath       string
	VaultBackupPath string
	VaultMaxEntries int

	// HTTP liveness server
	Port int

	// Redis (optional metadata cache)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MySQL (optional published-track persistence)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// MinIO (optional audio/cover archive)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Logging
	LogLevel      string
	LogOutputPath string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvInt64 gets an environment variable as int64 or returns a default value.
func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		VaultChatID:   getEnvInt64("VAULT_CHAT_ID", 0),

		DeezerARL:    os.Getenv("DEEZER_ARL"),
		DeezerAPIURL: getEnv("DEEZER_API_URL", "https://api.deezer.com"),
		MaxBitrate:   getEnvInt("MAX_BITRATE", 3),

		DeemixPath:   getEnv("DEEMIX_PATH", "deemix"),
		DownloadDir:  getEnv("DOWNLOAD_DIR", "descargas"),
		FetchTimeout: time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 600)) * time.Second,
		FetchRetries: getEnvInt("FETCH_RETRIES", 1),

		VaultPath:       getEnv("VAULT_PATH", filepath.Join(dataDir, "vault_data.json")),
		VaultBackupPath: getEnv("VAULT_BACKUP_PATH", filepath.Join(dataDir, "vault_data.backup.json")),
		VaultMaxEntries: getEnvInt("VAULT_MAX_ENTRIES", 1000),

		Port: getEnvInt("PORT", 8080),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "melodify"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "melodify"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogOutputPath: getEnv("LOG_OUTPUT_PATH", ""),
	}
}

// RedisEnabled reports whether a Redis metadata cache is configured.
func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

// DBEnabled reports whether MySQL persistence is configured.
func (c *Config) DBEnabled() bool { return c.DBHost != "" }

// MinioEnabled reports whether the MinIO archive is configured.
func (c *Config) MinioEnabled() bool { return c.MinioEndpoint != "" }
