// Package config загружает настройки сервера из переменных окружения.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Допустимые значения PASSWORD_HASHER.
const (
	HasherSHA256 = "sha256"
	HasherBcrypt = "bcrypt"
)

// DefaultCookieSecret используется только для локальной разработки.
const DefaultCookieSecret = "fallback-secret-change-in-production"

// Config содержит все настройки процесса.
type Config struct {
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath          string        `env:"DB_PATH" envDefault:"data/atkin_sieve.db"`
	CookieSecret    string        `env:"COOKIE_SECRET" envDefault:"fallback-secret-change-in-production"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"false"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	PasswordHasher  string        `env:"PASSWORD_HASHER" envDefault:"sha256"`
	SieveMaxN2      int           `env:"SIEVE_MAX_N2" envDefault:"10000000"`
	SieveTimeout    time.Duration `env:"SIEVE_TIMEOUT" envDefault:"30s"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`
	GinMode         string        `env:"GIN_MODE" envDefault:"release"`
}

// Load читает конфигурацию из окружения процесса и проверяет её.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom делает то же, что Load, но берёт значения из переданной карты,
// а не из окружения процесса.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("ошибка разбора переменных окружения: %w", err)
	}
	cfg.PasswordHasher = strings.ToLower(strings.TrimSpace(cfg.PasswordHasher))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые env не может проверить сам.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR не может быть пустым")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH не может быть пустым")
	}
	if c.CookieSecret == "" {
		return fmt.Errorf("COOKIE_SECRET не может быть пустым")
	}
	switch c.PasswordHasher {
	case HasherSHA256, HasherBcrypt:
	default:
		return fmt.Errorf("неизвестный PASSWORD_HASHER %q (допустимо: %s, %s)", c.PasswordHasher, HasherSHA256, HasherBcrypt)
	}
	if c.SieveMaxN2 < 2 || c.SieveMaxN2 > math.MaxInt32 {
		return fmt.Errorf("SIEVE_MAX_N2 должен быть в диапазоне [2, %d], получено %d", math.MaxInt32, c.SieveMaxN2)
	}
	if c.SieveTimeout <= 0 || c.StoreTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("таймауты должны быть положительными")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("неизвестный LOG_FORMAT %q", c.LogFormat)
	}
	// gin.SetMode паникует на любом другом значении.
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("неизвестный GIN_MODE %q (допустимо: debug, release, test)", c.GinMode)
	}
	return nil
}
