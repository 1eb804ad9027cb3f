package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Log      LogConfig
	Engine   EngineConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port            string
	AllowOrigins    []string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// AutoMigrate creates the engine tables on startup.
	AutoMigrate bool
}

type JWTConfig struct {
	SecretKey string
}

// RedisConfig is optional; an empty host disables the redis cache level.
type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

func (r RedisConfig) Enabled() bool {
	return r.RedisHost != ""
}

type LogConfig struct {
	Level  string
	Format string
}

type EngineConfig struct {
	// ConfigFile is a YAML document overlaid on the engine defaults.
	ConfigFile string
	// L3Enabled stores cache entries in postgres as the slowest level.
	L3Enabled bool
	// L2Size bounds the in-process fallback used when redis is not configured.
	L2Size int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("invalid redis database")
		}
		redisDB = n
	}

	shutdown, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	l2Size, err := strconv.Atoi(getEnv("ENGINE_L2_SIZE", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid l2 size: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Tool Advisor"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			AllowOrigins:    splitList(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:8080")),
			ShutdownTimeout: shutdown,
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			Name:        getEnv("DB_NAME", "tool_advisor"),
			SSLMode:     getEnv("DB_SSL_MODE", "disable"),
			AutoMigrate: getBool("DB_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", ""),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: getEnv("LOG_FORMAT", ""),
		},
		Engine: EngineConfig{
			ConfigFile: getEnv("ENGINE_CONFIG_FILE", ""),
			L3Enabled:  getBool("ENGINE_L3_ENABLED", true),
			L2Size:     l2Size,
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	return cfg, nil
}

// LoadYAML decodes the file at path over out. An empty path leaves out as is,
// so callers pass a struct already holding its defaults.
func LoadYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
