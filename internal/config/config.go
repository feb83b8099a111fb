package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Trading  TradingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД.
// Driver: sqlite (встроенная база, по умолчанию) или postgres.
type DatabaseConfig struct {
	Driver   string
	Path     string // путь к файлу sqlite
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey string // ключ шифрования API-ключей бирж
	APITokenHash  string // bcrypt-хеш токена управляющего API (пусто = аутентификация отключена)
}

// ExchangeConfig - настройки подключения к OKX
type ExchangeConfig struct {
	RESTBaseURL   string
	WSPublicURL   string
	APIKey        string
	SecretKey     string
	Passphrase    string
	Simulated     bool // demo-трейдинг OKX (заголовок x-simulated-trading)
	HTTPTimeout   time.Duration
	BalanceCacheTTL time.Duration

	// WebSocket настройки потока цен
	WSReconnectDelay time.Duration
	WSPingInterval   time.Duration
	WSReadTimeout    time.Duration
}

// TradingConfig - торговые параметры
type TradingConfig struct {
	Provider              string // virtual | okx
	Leverage              decimal.Decimal
	MaxLongMarginSize     decimal.Decimal
	MaxShortMarginSize    decimal.Decimal
	InitialVirtualBalance decimal.Decimal
	MaxLotExcessRatio     decimal.Decimal // предел отношения избытка к требуемому объёму
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "statarb.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "statarb"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
			APITokenHash:  getEnv("API_TOKEN_HASH", ""),
		},
		Exchange: ExchangeConfig{
			RESTBaseURL:     getEnv("OKX_REST_URL", "https://www.okx.com"),
			WSPublicURL:     getEnv("OKX_WS_PUBLIC_URL", "wss://ws.okx.com:8443/ws/v5/public"),
			APIKey:          getEnv("OKX_API_KEY", ""),
			SecretKey:       getEnv("OKX_SECRET_KEY", ""),
			Passphrase:      getEnv("OKX_PASSPHRASE", ""),
			Simulated:       getEnvAsBool("OKX_SIMULATED", true),
			HTTPTimeout:     getEnvAsDuration("OKX_HTTP_TIMEOUT", 10*time.Second),
			BalanceCacheTTL: getEnvAsDuration("OKX_BALANCE_CACHE_TTL", 10*time.Second),

			WSReconnectDelay: getEnvAsDuration("WS_RECONNECT_DELAY", 1*time.Second),
			WSPingInterval:   getEnvAsDuration("WS_PING_INTERVAL", 15*time.Second),
			WSReadTimeout:    getEnvAsDuration("WS_READ_TIMEOUT", 30*time.Second),
		},
		Trading: TradingConfig{
			Provider:              getEnv("TRADING_PROVIDER", "virtual"),
			Leverage:              getEnvAsDecimal("LEVERAGE", decimal.NewFromInt(1)),
			MaxLongMarginSize:     getEnvAsDecimal("MAX_LONG_MARGIN_SIZE", decimal.NewFromInt(100)),
			MaxShortMarginSize:    getEnvAsDecimal("MAX_SHORT_MARGIN_SIZE", decimal.NewFromInt(100)),
			InitialVirtualBalance: getEnvAsDecimal("INITIAL_VIRTUAL_BALANCE", decimal.NewFromInt(10000)),
			MaxLotExcessRatio:     getEnvAsDecimal("MAX_LOT_EXCESS_RATIO", decimal.NewFromInt(3)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API ключей бирж
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(c.Security.EncryptionKey) < 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be at least 32 characters")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for sqlite driver")
		}
	case "postgres":
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (sqlite or postgres)", c.Database.Driver)
	}

	if c.Exchange.HTTPTimeout <= 0 {
		return fmt.Errorf("OKX_HTTP_TIMEOUT must be positive, got %v", c.Exchange.HTTPTimeout)
	}

	if c.Exchange.WSReadTimeout <= 0 {
		return fmt.Errorf("WS_READ_TIMEOUT must be positive, got %v", c.Exchange.WSReadTimeout)
	}

	if c.Trading.Leverage.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("LEVERAGE must be at least 1, got %s", c.Trading.Leverage)
	}

	if c.Trading.MaxLongMarginSize.IsNegative() || c.Trading.MaxShortMarginSize.IsNegative() {
		return fmt.Errorf("margin sizes cannot be negative")
	}

	if c.Trading.InitialVirtualBalance.IsNegative() {
		return fmt.Errorf("INITIAL_VIRTUAL_BALANCE cannot be negative, got %s", c.Trading.InitialVirtualBalance)
	}

	if !c.Trading.MaxLotExcessRatio.IsPositive() {
		return fmt.Errorf("MAX_LOT_EXCESS_RATIO must be positive, got %s", c.Trading.MaxLotExcessRatio)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
