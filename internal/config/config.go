package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

const (
	DefaultUploadRoot    = "./uploads" // Корневая директория хранилища файлов
	DefaultMaxUploadSize = 32 << 20    // Максимальный объем одного запроса на загрузку: 32 MB
	DefaultSessionTTL    = 24 * time.Hour
	DefaultShareTTL      = 15 * time.Minute // Срок действия ссылки для внешнего просмотрщика
)

const (
	// DefaultMaxConnectionsPerIP ограничение на количество одновременных соединений с одного IP-адреса
	DefaultMaxConnectionsPerIP = 10
	// DefaultMaxUploadBytesPerIP объем данных, который можно загрузить с одного IP-адреса за сутки
	DefaultMaxUploadBytesPerIP = 512 << 20 // 512 MB
	// DefaultMaxDownloadBytesPerIP объем данных, который можно скачать одним IP-адресом за сутки
	DefaultMaxDownloadBytesPerIP = 1 << 30 // 1 GB
	// DefaultMaxDeletesPerIP количество удалений файлов и папок с одного IP-адреса за сутки
	DefaultMaxDeletesPerIP = 500
	// DefaultRequestsPerSecond ограничивает количество запросов с одного IP-адреса в секунду
	DefaultRequestsPerSecond = 20
	// DefaultMaxConcurrentUploads максимальное число одновременно обрабатываемых загрузок
	DefaultMaxConcurrentUploads = 10
)

// DefaultAllowedExtensions расширения файлов, которые принимаются при загрузке
var DefaultAllowedExtensions = []string{"txt", "pdf", "png", "jpg", "jpeg", "gif", "doc", "docx"}

// Config конфигурация приложения
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Storage StorageConfig `mapstructure:"storage"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
	Viewer  ViewerConfig  `mapstructure:"viewer"`
	Limits  LimitsConfig  `mapstructure:"limits"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	// Addr пустой адрес отключает отдельный сервер метрик
	Addr string `mapstructure:"addr"`
}

// StorageConfig настройки файлового хранилища и хранилища метаданных
type StorageConfig struct {
	// Backend "mongo" или "memory"
	Backend              string   `mapstructure:"backend"`
	UploadRoot           string   `mapstructure:"upload_root"`
	AllowedExtensions    []string `mapstructure:"allowed_extensions"`
	MaxUploadSize        int64    `mapstructure:"max_upload_size"`
	MaxConcurrentUploads int64    `mapstructure:"max_concurrent_uploads"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	ShareTTL     time.Duration `mapstructure:"share_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File путь к файлу журнала с ротацией, пустое значение - только stderr
	File string `mapstructure:"file"`
}

// ViewerConfig настройки просмотра документов .doc через внешний сервис
type ViewerConfig struct {
	OfficeURL string `mapstructure:"office_url"`
	PublicURL string `mapstructure:"public_url"`
}

// LimitsConfig лимиты на один IP-адрес; нулевое значение отключает лимит
type LimitsConfig struct {
	RequestsPerSecond     float64 `mapstructure:"requests_per_second"`
	MaxConnectionsPerIP   int64   `mapstructure:"max_connections_per_ip"`
	MaxUploadBytesPerIP   int64   `mapstructure:"max_upload_bytes_per_ip"`
	MaxDownloadBytesPerIP int64   `mapstructure:"max_download_bytes_per_ip"`
	MaxDeletesPerIP       int64   `mapstructure:"max_deletes_per_ip"`
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("%w: mongo.uri is required for mongo backend", models.ErrConfigInvalid)
		}
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is required for mongo backend", models.ErrConfigInvalid)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown storage backend: %s", models.ErrConfigInvalid, c.Storage.Backend)
	}
	if c.Storage.UploadRoot == "" {
		return fmt.Errorf("%w: storage.upload_root cannot be empty", models.ErrConfigInvalid)
	}
	if len(c.Storage.AllowedExtensions) == 0 {
		return fmt.Errorf("%w: storage.allowed_extensions cannot be empty", models.ErrConfigInvalid)
	}
	if c.Storage.MaxUploadSize <= 0 {
		return fmt.Errorf("%w: storage.max_upload_size must be positive", models.ErrConfigInvalid)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required", models.ErrConfigInvalid)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("%w: auth.session_ttl must be positive", models.ErrConfigInvalid)
	}
	if c.Auth.ShareTTL <= 0 {
		return fmt.Errorf("%w: auth.share_ttl must be positive", models.ErrConfigInvalid)
	}
	return nil
}

// AllowedSet возвращает множество разрешенных расширений в нижнем регистре
func (c *Config) AllowedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Storage.AllowedExtensions))
	for _, ext := range c.Storage.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}
