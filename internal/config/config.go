package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
	EnvTest = "test"

	defaultJWTSecret = "your-jwt-secret"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Security  SecurityConfig  `mapstructure:"security"`
	Session   SessionConfig   `mapstructure:"session"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	GRPCPort     int           `mapstructure:"grpc_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"` // dev, prod, test
	// Заголовок с адресом клиента от reverse proxy, пусто если прокси нет
	ProxyHeader    string   `mapstructure:"proxy_header"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type SMSConfig struct {
	Provider string        `mapstructure:"provider"` // sms_ru
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	FromName string        `mapstructure:"from_name"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SecurityConfig struct {
	BCryptCost        int           `mapstructure:"bcrypt_cost"`
	CodeLength        int           `mapstructure:"code_length"`
	CodeTTL           time.Duration `mapstructure:"code_ttl"`
	MaxCodeAttempts   int           `mapstructure:"max_code_attempts"`
	SendCodeLimit     int           `mapstructure:"send_code_limit"`
	SendCodeWindow    time.Duration `mapstructure:"send_code_window"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	RequestsPerHour   int           `mapstructure:"requests_per_hour"`
	RequestsPerDay    int           `mapstructure:"requests_per_day"`
}

type SessionConfig struct {
	AuthCookie string        `mapstructure:"auth_cookie"`
	AnonCookie string        `mapstructure:"anon_cookie"`
	AnonTTL    time.Duration `mapstructure:"anon_ttl"`
}

type TelemetryConfig struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// IsProduction определяет, запущен ли сервис в продакшене
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProd
}

// DSN строка подключения к Postgres
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Настройка значений по умолчанию
	setDefaults(v)

	// Переменные окружения: JWT_SECRET -> jwt.secret
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Чтение файла конфигурации
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		return errors.New("jwt.secret must be changed in production")
	}
	if c.Security.CodeLength <= 0 {
		return errors.New("security.code_length must be positive")
	}
	if c.Security.MaxCodeAttempts <= 0 {
		return errors.New("security.max_code_attempts must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.proxy_header", "X-Forwarded-For")
	v.SetDefault("server.trusted_proxies", []string{"127.0.0.1", "::1"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "aso_dev")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	// JWT defaults
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.ttl", "168h")

	// SMS defaults
	v.SetDefault("sms.provider", "sms_ru")
	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.base_url", "https://sms.ru")
	v.SetDefault("sms.from_name", "")
	v.SetDefault("sms.timeout", "10s")

	// Security defaults
	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.code_length", 6)
	v.SetDefault("security.code_ttl", "10m")
	v.SetDefault("security.max_code_attempts", 3)
	v.SetDefault("security.send_code_limit", 5)
	v.SetDefault("security.send_code_window", "10m")
	v.SetDefault("security.requests_per_minute", 60)
	v.SetDefault("security.requests_per_hour", 600)
	v.SetDefault("security.requests_per_day", 5000)

	// Session defaults
	v.SetDefault("session.auth_cookie", "auth-token")
	v.SetDefault("session.anon_cookie", "anon_token")
	v.SetDefault("session.anon_ttl", "8760h")

	// Telemetry defaults
	v.SetDefault("telemetry.workers", 4)
	v.SetDefault("telemetry.queue_size", 1024)
	v.SetDefault("telemetry.task_timeout", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
