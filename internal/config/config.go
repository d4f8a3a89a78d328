// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variables read by the relay itself. All three are required.
const (
	EnvAPIURL     = "TIMESHEET_API_URL"
	EnvAPIKey     = "TIMESHEET_API_KEY"
	EnvBucketName = "GCS_BUCKET_NAME"
)

// DefaultWriteTimeout is the HTTP write timeout in seconds. A relay request can
// spend the full 30s fetch timeout before its upload starts, so it leaves room
// for a slow upload on top of that.
const DefaultWriteTimeout = 120

type Config struct {
	Server  ServerConfig
	Relay   RelayConfig
	Storage StorageConfig
	History HistoryConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// RelayConfig holds the three values a relay invocation needs.
type RelayConfig struct {
	APIURL string
	APIKey string
	Bucket string
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Backend         string
	GCSEndpoint     string
	CredentialsFile string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Region        string
	S3UseSSL        bool
}

type HistoryConfig struct {
	Backend       string
	MaxRuns       int
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	DBDriver      string
}

type LogConfig struct {
	Level  string
	Format string
}

// MissingEnvError reports a required environment variable that is unset or empty.
type MissingEnvError struct {
	Key string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing environment variable %s", e.Key)
}

// Validate checks that every relay value is present. The first missing one is
// reported, in the order URL, key, bucket.
func (c RelayConfig) Validate() error {
	for _, field := range []struct {
		key, value string
	}{
		{EnvAPIURL, c.APIURL},
		{EnvAPIKey, c.APIKey},
		{EnvBucketName, c.Bucket},
	} {
		if field.value == "" {
			return &MissingEnvError{Key: field.key}
		}
	}
	return nil
}

var (
	once     sync.Once
	instance *Config
)

// Load reads the configuration once per process.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()
		instance = FromEnv()
	})

	return instance
}

// FromEnv builds a fresh Config from the current environment.
func FromEnv() *Config {
	v := viper.New()

	// Set default values
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "release")
	v.SetDefault("SERVER_READ_TIMEOUT", 60)
	v.SetDefault("SERVER_WRITE_TIMEOUT", DefaultWriteTimeout)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("STORAGE_BACKEND", "gcs")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("HISTORY_BACKEND", "none")
	v.SetDefault("HISTORY_MAX_RUNS", 100)
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DB_DRIVER", "postgres")

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Relay: RelayConfig{
			APIURL: v.GetString(EnvAPIURL),
			APIKey: v.GetString(EnvAPIKey),
			Bucket: v.GetString(EnvBucketName),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(v.GetString("STORAGE_BACKEND")),
			GCSEndpoint:     v.GetString("GCS_ENDPOINT"),
			CredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
			S3Endpoint:      v.GetString("S3_ENDPOINT"),
			S3AccessKey:     v.GetString("S3_ACCESS_KEY"),
			S3SecretKey:     v.GetString("S3_SECRET_KEY"),
			S3Region:        v.GetString("S3_REGION"),
			S3UseSSL:        v.GetBool("S3_USE_SSL"),
		},
		History: HistoryConfig{
			Backend:       strings.ToLower(v.GetString("HISTORY_BACKEND")),
			MaxRuns:       v.GetInt("HISTORY_MAX_RUNS"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			DatabaseURL:   v.GetString("DATABASE_URL"),
			DBDriver:      strings.ToLower(v.GetString("DB_DRIVER")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}
