package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultSourceURL  = "https://www.thesportsdb.com/api/v1/json/3/all_leagues.php"
	DefaultBucket     = "raw-data"
	DefaultObjectKey  = "sports_data.json"
	DefaultTableName  = "sports_data"
	DefaultDataDir    = "./2_data"
	DefaultLogDir     = "./5_logs"
	DefaultStorageDrv = "minio"
	DefaultDBDriver   = "postgres"
)

type Config struct {
	Source   SourceConfig
	Storage  StorageConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Server   ServerConfig
	Pipeline PipelineConfig
}

type SourceConfig struct {
	URL     string
	Timeout time.Duration
}

// StorageConfig describes the staging bucket. Driver selects the client:
// "minio" (default), "blob" (gocloud URL in BlobURL) or "sevalla".
type StorageConfig struct {
	Driver    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	ObjectKey string
	BlobURL   string
}

// DatabaseConfig selects the database/sql driver ("postgres" via lib/pq or
// "pgx") and its connection settings. DSN, when set, wins over the parts.
type DatabaseConfig struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Table    string
}

type AppConfig struct {
	DataDir  string
	LogDir   string
	LogLevel string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	StatusTTLSeconds int
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type PipelineConfig struct {
	// StrictExit makes a failed stage end the process with a non-zero status.
	StrictExit bool
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Load reads .env (if present) and the process environment once and returns
// the shared configuration.
func Load() (*Config, error) {
	once.Do(func() {
		_ = godotenv.Load()

		SetDefaults(viper.GetViper())
		viper.AutomaticEnv()

		instance, loadErr = FromViper(viper.GetViper())
	})

	return instance, loadErr
}

// SetDefaults registers every recognised option with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SOURCE_URL", DefaultSourceURL)
	v.SetDefault("SOURCE_TIMEOUT_SECONDS", 30)

	v.SetDefault("STORAGE_DRIVER", DefaultStorageDrv)
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_REGION", "")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_BUCKET", DefaultBucket)
	v.SetDefault("OBJECT_KEY", DefaultObjectKey)
	v.SetDefault("STORAGE_BLOB_URL", "")

	v.SetDefault("DB_DRIVER", DefaultDBDriver)
	v.SetDefault("DB_DSN", "")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DB", "sports")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("DB_TABLE", DefaultTableName)

	v.SetDefault("APP_DATA_DIR", DefaultDataDir)
	v.SetDefault("APP_LOG_DIR", DefaultLogDir)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_STATUS_TTL_SECONDS", 7*24*60*60)

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("PIPELINE_STRICT_EXIT", false)
}

// FromViper builds a Config from an already populated viper instance and
// makes sure the data and log directories exist.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Source: SourceConfig{
			URL:     v.GetString("SOURCE_URL"),
			Timeout: time.Duration(v.GetInt("SOURCE_TIMEOUT_SECONDS")) * time.Second,
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Region:    v.GetString("MINIO_REGION"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			ObjectKey: v.GetString("OBJECT_KEY"),
			BlobURL:   v.GetString("STORAGE_BLOB_URL"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			DSN:      v.GetString("DB_DSN"),
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
			Table:    v.GetString("DB_TABLE"),
		},
		App: AppConfig{
			DataDir:  v.GetString("APP_DATA_DIR"),
			LogDir:   v.GetString("APP_LOG_DIR"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			StatusTTLSeconds: v.GetInt("CACHE_STATUS_TTL_SECONDS"),
		},
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Pipeline: PipelineConfig{
			StrictExit: v.GetBool("PIPELINE_STRICT_EXIT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.App.DataDir, cfg.App.LogDir} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks the options that have a closed set of values.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "minio", "sevalla":
	case "blob":
		if c.Storage.BlobURL == "" {
			return fmt.Errorf("STORAGE_BLOB_URL is required for the blob storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("MINIO_BUCKET must not be empty")
	}
	if c.Storage.ObjectKey == "" {
		return fmt.Errorf("OBJECT_KEY must not be empty")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// ConnString returns DSN when set, otherwise a libpq keyword/value string
// understood by both lib/pq and pgx.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
