package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Converter ConverterConfig
	MinIO     MinIOConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"5m"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes  int64         `envconfig:"API_MAX_UPLOAD_BYTES" default:"104857600"`
	LogLevel        string        `envconfig:"API_LOG_LEVEL" default:"info"`
}

// SlogLevel parses LogLevel, falling back to info for unknown values.
func (c ServerConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

type ConverterConfig struct {
	FFmpegPath string `envconfig:"CONVERTER_FFMPEG_PATH" default:"ffmpeg"`
	StagingDir string `envconfig:"CONVERTER_STAGING_DIR" default:"/tmp/flipconvert"`
	PoolSize   int    `envconfig:"CONVERTER_POOL_SIZE" default:"2"`
	LogLevel   string `envconfig:"CONVERTER_LOG_LEVEL" default:"error"`
}

type MinIOConfig struct {
	Endpoint          string        `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	PublicEndpoint    string        `envconfig:"MINIO_PUBLIC_ENDPOINT"`
	AccessKey         string        `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey         string        `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket            string        `envconfig:"MINIO_BUCKET" default:"artifacts"`
	UseSSL            bool          `envconfig:"MINIO_USE_SSL" default:"false"`
	DownloadURLExpiry time.Duration `envconfig:"MINIO_DOWNLOAD_URL_EXPIRY" default:"15m"`
}

type RedisConfig struct {
	Host        string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port        int           `envconfig:"REDIS_PORT" default:"6379"`
	Password    string        `envconfig:"REDIS_PASSWORD"`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	ArtifactTTL time.Duration `envconfig:"REDIS_ARTIFACT_TTL" default:"15m"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RabbitMQConfig struct {
	Host           string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port           int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User           string `envconfig:"RABBITMQ_USER" default:"flipconvert"`
	Password       string `envconfig:"RABBITMQ_PASSWORD" default:"flipconvert"`
	VHost          string `envconfig:"RABBITMQ_VHOST" default:"/"`
	EventsExchange string `envconfig:"RABBITMQ_EVENTS_EXCHANGE" default:"flipconvert.events"`
	Enabled        bool   `envconfig:"RABBITMQ_ENABLED" default:"true"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot constrain.
func (c *Config) Validate() error {
	if c.Converter.PoolSize < 1 {
		return fmt.Errorf("CONVERTER_POOL_SIZE must be at least 1, got %d", c.Converter.PoolSize)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("API_MAX_UPLOAD_BYTES must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if c.Redis.ArtifactTTL <= 0 {
		return fmt.Errorf("REDIS_ARTIFACT_TTL must be positive, got %s", c.Redis.ArtifactTTL)
	}
	if c.MinIO.DownloadURLExpiry <= 0 {
		return fmt.Errorf("MINIO_DOWNLOAD_URL_EXPIRY must be positive, got %s", c.MinIO.DownloadURLExpiry)
	}
	return nil
}
