// Пакет config собирает конфигурацию сервиса: значения по умолчанию, YAML-файл, переменные окружения
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config корневая конфигурация API и консьюмера
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Auth       AuthConfig       `yaml:"auth"`
	Blog       BlogConfig       `yaml:"blog"`
	GitHub     GitHubConfig     `yaml:"github"`
	Weather    WeatherConfig    `yaml:"weather"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ConsumerPort    int           `yaml:"consumer_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// BaseURL адрес, на который шлюз пересылает запросы; пусто означает собственный порт
	BaseURL string `yaml:"base_url"`
	// TrustedProxies CIDR прокси, которым разрешено передавать X-Forwarded-For
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Address возвращает адрес HTTP-сервера
func (c ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SelfURL адрес API для шлюза
func (c ServerConfig) SelfURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Port)
}

type DatabaseConfig struct {
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Name           string        `yaml:"name"`
	SSLMode        string        `yaml:"sslmode"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	MaxIdleConns   int           `yaml:"max_idle_conns"`
	MaxLifetime    time.Duration `yaml:"max_lifetime"`
	MigrationsPath string        `yaml:"migrations_path"`
}

// DSN строка подключения к PostgreSQL
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type ClickHouseConfig struct {
	DSN            string        `yaml:"dsn"`
	BatchSize      int           `yaml:"batch_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	MigrationsPath string        `yaml:"migrations_path"`
}

type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	AdminEmails []string      `yaml:"admin_emails"`
	// AdminPaths логические пути шлюза, требующие tier admin
	AdminPaths []string `yaml:"admin_paths"`
}

type BlogConfig struct {
	IngestAPIKey string `yaml:"ingest_api_key"`
}

type GitHubConfig struct {
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	APIURL   string `yaml:"api_url"`
}

type WeatherConfig struct {
	BaseURL string        `yaml:"base_url"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewDefaultConfig возвращает конфигурацию по умолчанию
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ConsumerPort:    8081,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "postgres",
			Password:       "postgres",
			Name:           "appdb",
			SSLMode:        "disable",
			MaxOpenConns:   25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
			MigrationsPath: "migrations/postgres",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			CacheTTL: time.Minute,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "portfolio.events",
		},
		ClickHouse: ClickHouseConfig{
			DSN:            "tcp://localhost:9000?database=appdb",
			BatchSize:      10,
			FlushInterval:  5 * time.Second,
			MigrationsPath: "migrations/clickhouse",
		},
		Auth: AuthConfig{
			TokenTTL: 30 * 24 * time.Hour,
		},
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
		},
		Weather: WeatherConfig{
			BaseURL: "https://api.open-meteo.com",
			TTL:     600 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load собирает конфигурацию: умолчания, затем YAML-файл path (если задан и существует), затем окружение.
// .env.local и .env подгружаются godotenv без перезаписи уже выставленных переменных
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := NewDefaultConfig()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getIntEnv("PORT", c.Server.Port)
	c.Server.ConsumerPort = getIntEnv("CONSUMER_PORT", c.Server.ConsumerPort)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.BaseURL = getEnv("API_BASE_URL", c.Server.BaseURL)
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = splitList(v)
	}

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.MaxLifetime = getDurationEnv("DB_MAX_LIFETIME", c.Database.MaxLifetime)
	c.Database.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", c.Database.MigrationsPath)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("REDIS_DB", c.Redis.DB)
	c.Redis.CacheTTL = getDurationEnv("CACHE_TTL", c.Redis.CacheTTL)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("NATS_SUBJECT", c.NATS.Subject)

	c.ClickHouse.DSN = getEnv("CLICKHOUSE_DSN", c.ClickHouse.DSN)
	c.ClickHouse.BatchSize = getIntEnv("BATCH_SIZE", c.ClickHouse.BatchSize)
	c.ClickHouse.FlushInterval = getDurationEnv("FLUSH_INTERVAL", c.ClickHouse.FlushInterval)
	c.ClickHouse.MigrationsPath = getEnv("CLICKHOUSE_MIGRATIONS_PATH", c.ClickHouse.MigrationsPath)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = getDurationEnv("TOKEN_TTL", c.Auth.TokenTTL)
	// ADMIN_EMAILS имеет приоритет над единичным ADMIN_EMAIL
	if v := getEnv("ADMIN_EMAILS", getEnv("ADMIN_EMAIL", "")); v != "" {
		c.Auth.AdminEmails = splitList(v)
	}
	if v := getEnv("GATEWAY_ADMIN_PATHS", ""); v != "" {
		c.Auth.AdminPaths = splitList(v)
	}

	c.Blog.IngestAPIKey = getEnv("BLOG_INGEST_API_KEY", c.Blog.IngestAPIKey)

	c.GitHub.Token = getEnv("GITHUB_TOKEN", c.GitHub.Token)
	c.GitHub.Username = getEnv("GITHUB_USERNAME", c.GitHub.Username)
	c.GitHub.APIURL = getEnv("GITHUB_API_URL", c.GitHub.APIURL)

	c.Weather.BaseURL = getEnv("WEATHER_API_URL", c.Weather.BaseURL)
	c.Weather.TTL = getDurationEnv("WEATHER_TTL", c.Weather.TTL)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// MinJWTSecretLen минимальная длина ключа подписи HS256
const MinJWTSecretLen = 32

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Server.ConsumerPort, validation.Min(0), validation.Max(65535)),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Host, validation.Required),
		validation.Field(&c.Database.Name, validation.Required),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := validation.ValidateStruct(&c.ClickHouse,
		validation.Field(&c.ClickHouse.BatchSize, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("clickhouse: %w", err)
	}
	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.JWTSecret, validation.Required, validation.Length(MinJWTSecretLen, 0)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := validation.ValidateStruct(&c.Weather,
		validation.Field(&c.Weather.TTL, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("weather: %w", err)
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Format, validation.Required, validation.In("json", "pretty")),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
