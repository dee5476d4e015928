package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"tutormarket/internal/lifecycle"
)

// Config - настройки сервиса. Значения по умолчанию перекрываются файлом
// CONFIG_FILE (YAML), а файл - переменными окружения.
type Config struct {
	ServerAddress string `yaml:"server_address"`
	LogLevel      string `yaml:"log_level"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	JWTSecret   string                `yaml:"jwt_secret"`
	AwardPolicy lifecycle.AwardPolicy `yaml:"award_policy"`
	PageSize    int                   `yaml:"page_size"`
	MaxPageSize int                   `yaml:"max_page_size"`

	Stripe    StripeConfig    `yaml:"stripe"`
	Classroom ClassroomConfig `yaml:"classroom"`
	SMTP      SMTPConfig      `yaml:"smtp"`
}

// StripeConfig - ключи Stripe. ClientID нужен для подключения аккаунтов выплат.
type StripeConfig struct {
	SecretKey          string  `yaml:"secret_key"`
	ClientID           string  `yaml:"client_id"`
	Currency           string  `yaml:"currency"`
	PlatformFeePercent float64 `yaml:"platform_fee_percent"`
	PlatformFeeMin     int64   `yaml:"platform_fee_min_cents"`
}

type ClassroomConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

type SMTPConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	From          string        `yaml:"from"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// Enabled сообщает, настроена ли отправка почты.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

func defaults() *Config {
	return &Config{
		ServerAddress: "0.0.0.0:8080",
		LogLevel:      "info",
		DBDriver:      "postgres",
		AwardPolicy:   lifecycle.AwardLenient,
		PageSize:      5,
		MaxPageSize:   50,
		Stripe: StripeConfig{
			Currency:           "usd",
			PlatformFeePercent: 10,
			PlatformFeeMin:     100,
		},
		Classroom: ClassroomConfig{TokenTTL: 12 * time.Hour},
		SMTP:      SMTPConfig{Port: 587, NotifyTimeout: 30 * time.Second},
	}
}

// LoadConfig собирает конфигурацию из файла и окружения и проверяет её.
func LoadConfig() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.ServerAddress, "SERVER_ADDRESS")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.JWTSecret, "JWT_SECRET")

	// POSTGRES_CONN оставлен для совместимости со старыми окружениями.
	if conn := os.Getenv("POSTGRES_CONN"); conn != "" {
		c.DBDriver, c.DBDSN = "postgres", conn
	}
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DBDSN, "DB_DSN")

	if v := os.Getenv("AWARD_POLICY"); v != "" {
		c.AwardPolicy = lifecycle.AwardPolicy(v)
	}

	setString(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Stripe.ClientID, "STRIPE_CLIENT_ID")
	setString(&c.Stripe.Currency, "STRIPE_CURRENCY")
	setString(&c.Classroom.TokenSecret, "CLASSROOM_TOKEN_SECRET")
	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")

	if err := setInt(&c.PageSize, "PAGE_SIZE"); err != nil {
		return err
	}
	if err := setInt(&c.MaxPageSize, "MAX_PAGE_SIZE"); err != nil {
		return err
	}
	if err := setInt(&c.SMTP.Port, "SMTP_PORT"); err != nil {
		return err
	}
	if v := os.Getenv("PLATFORM_FEE_PERCENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid PLATFORM_FEE_PERCENT value: %v", err)
		}
		c.Stripe.PlatformFeePercent = f
	}
	if v := os.Getenv("PLATFORM_FEE_MIN_CENTS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PLATFORM_FEE_MIN_CENTS value: %v", err)
		}
		c.Stripe.PlatformFeeMin = n
	}
	if err := setDuration(&c.Classroom.TokenTTL, "CLASSROOM_TOKEN_TTL"); err != nil {
		return err
	}
	return setDuration(&c.SMTP.NotifyTimeout, "NOTIFY_TIMEOUT")
}

// Validate проверяет обязательные поля и допустимые значения.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("database configuration is incomplete")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	policy, err := lifecycle.ParseAwardPolicy(string(c.AwardPolicy))
	if err != nil {
		return err
	}
	c.AwardPolicy = policy
	if c.PageSize <= 0 || c.MaxPageSize < c.PageSize {
		return fmt.Errorf("invalid page size %d (max %d)", c.PageSize, c.MaxPageSize)
	}
	if c.Stripe.PlatformFeePercent < 0 || c.Stripe.PlatformFeePercent > 100 {
		return fmt.Errorf("platform fee percent must be between 0 and 100")
	}
	if c.Stripe.PlatformFeeMin < 0 {
		return fmt.Errorf("platform fee minimum must not be negative")
	}
	c.Stripe.Currency = strings.ToLower(c.Stripe.Currency)
	if c.Classroom.TokenSecret == "" {
		c.Classroom.TokenSecret = c.JWTSecret
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %v", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %v", key, err)
	}
	*dst = d
	return nil
}
