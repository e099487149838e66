// Package config описывает настройки сервиса и загружает их из YAML-файла
// с возможностью переопределения через переменные окружения.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Окружения запуска.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Поддерживаемые платёжные провайдеры.
const (
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	PaymentProvider         `yaml:"payment_provider"`
	Checkout                `yaml:"checkout"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit запросов в секунду на один IP для эндпоинтов входа и регистрации.
	RateLimit float64 `yaml:"rate_limit" env-default:"1"`
	RateBurst int     `yaml:"rate_burst" env-default:"5"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// PaymentProvider настройки платёжного провайдера.
type PaymentProvider struct {
	Kind      string        `yaml:"kind" env:"PAYMENT_PROVIDER" env-default:"stripe"`
	SecretKey string        `yaml:"secret_key" env:"PAYMENT_PROVIDER_SECRET_KEY"`
	APIURL    string        `yaml:"api_url" env:"PAYMENT_PROVIDER_API_URL"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
	// PaddleEnvironment sandbox или production, используется только для Paddle.
	PaddleEnvironment string `yaml:"paddle_environment" env-default:"sandbox"`
	// PaddlePriceID каталожная цена Paddle, соответствующая продукту подписки.
	PaddlePriceID string `yaml:"paddle_price_id" env:"PADDLE_PRICE_ID"`
}

// Checkout параметры оплачиваемого продукта и адресов возврата.
type Checkout struct {
	BaseURL           string        `yaml:"base_url" env:"CHECKOUT_BASE_URL" env-default:"http://localhost:8080"`
	ProductName       string        `yaml:"product_name" env-default:"Monthly Subscription"`
	Currency          string        `yaml:"currency" env-default:"usd"`
	UnitAmount        int64         `yaml:"unit_amount" env-default:"1000"`
	Mode              string        `yaml:"mode" env-default:"subscription"`
	EntitlementPeriod time.Duration `yaml:"entitlement_period" env-default:"720h"`
}

// RabbitMQ настройки публикации событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL      string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange string        `yaml:"exchange" env-default:"subscription.events"`
	Retries  int           `yaml:"retries" env-default:"5"`
	Delay    time.Duration `yaml:"delay" env-default:"2s"`
	// NotifierQueue очередь воркера уведомлений, привязанная к subscription.activated.
	NotifierQueue string `yaml:"notifier_queue" env-default:"notifications.subscription_activated"`
	// NotifierWorkers сколько сообщений воркер обрабатывает одновременно.
	NotifierWorkers int `yaml:"notifier_workers" env-default:"10"`
}

// SMTP настройки отправки писем воркером уведомлений.
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST" env-default:"localhost"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"password" env:"SMTP_PASSWORD"`
	// From адрес отправителя. Пустой означает SMTPUser.
	From string `yaml:"from" env:"SMTP_FROM"`
	// StartTLS включает шифрование соединения. По умолчанию выключено, для
	// внешних релеев его нужно включить явно.
	StartTLS bool `yaml:"starttls" env:"SMTP_STARTTLS"`
}

// MustLoad загружает конфиг из файла CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг из файла path.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек, которые cleanenv проверить не может.
func (c *Config) Validate() error {
	switch c.PaymentProvider.Kind {
	case ProviderStripe:
	case ProviderPaddle:
		if c.PaddlePriceID == "" {
			return fmt.Errorf("payment_provider.paddle_price_id is required for paddle")
		}
	default:
		return fmt.Errorf("unknown payment provider %q", c.PaymentProvider.Kind)
	}
	if c.UnitAmount <= 0 {
		return fmt.Errorf("checkout.unit_amount must be positive")
	}
	if c.EntitlementPeriod <= 0 {
		return fmt.Errorf("checkout.entitlement_period must be positive")
	}
	return nil
}

// String возвращает конфиг без секретов, пригодный для логирования.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n"+
			"PaymentProvider:\n"+
			"  Kind: %s\n"+
			"  Timeout: %s\n"+
			"Checkout:\n"+
			"  BaseURL: %s\n"+
			"  Product: %s (%d %s)\n",
		c.Env,
		c.MigrationsPath,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.TokenTTL,
		c.PaymentProvider.Kind,
		c.PaymentProvider.Timeout,
		c.BaseURL,
		c.ProductName,
		c.UnitAmount,
		c.Currency,
	)
}
