package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

// EnvPrefix префикс переменных окружения, например NOTES_MONGO_URI
const EnvPrefix = "NOTES"

// DefaultConfigPaths возвращает директории для поиска config.yaml
func DefaultConfigPaths() []string {
	paths := []string{
		".",
		"./configs",
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "notes_storage"))
	}

	return paths
}

// Load читает конфигурацию из файла и переменных окружения.
// Если path пустой, config.yaml ищется в DefaultConfigPaths; отсутствие файла не ошибка.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %v", models.ErrConfigInvalid, err)
		}
	}

	return decode(v)
}

// LoadFromString разбирает конфигурацию из YAML строки
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfigInvalid, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("storage.backend", "mongo")
	v.SetDefault("storage.upload_root", DefaultUploadRoot)
	v.SetDefault("storage.allowed_extensions", DefaultAllowedExtensions)
	v.SetDefault("storage.max_upload_size", DefaultMaxUploadSize)
	v.SetDefault("storage.max_concurrent_uploads", DefaultMaxConcurrentUploads)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "notes_db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", DefaultSessionTTL)
	v.SetDefault("auth.share_ttl", DefaultShareTTL)
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("viewer.office_url", "")
	v.SetDefault("viewer.public_url", "")

	v.SetDefault("limits.requests_per_second", DefaultRequestsPerSecond)
	v.SetDefault("limits.max_connections_per_ip", DefaultMaxConnectionsPerIP)
	v.SetDefault("limits.max_upload_bytes_per_ip", DefaultMaxUploadBytesPerIP)
	v.SetDefault("limits.max_download_bytes_per_ip", DefaultMaxDownloadBytesPerIP)
	v.SetDefault("limits.max_deletes_per_ip", DefaultMaxDeletesPerIP)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfigInvalid, err)
	}

	// переменная окружения приходит одной строкой "txt,pdf"
	if len(cfg.Storage.AllowedExtensions) == 1 && strings.Contains(cfg.Storage.AllowedExtensions[0], ",") {
		cfg.Storage.AllowedExtensions = strings.Split(cfg.Storage.AllowedExtensions[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
