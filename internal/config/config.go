// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	RabbitMQ                `yaml:"rabbitmq"`
	Gateway                 `yaml:"gateway"`
	WebhookAuth             `yaml:"webhook_auth"`
	Bot                     `yaml:"bot"`
	Session                 `yaml:"session"`
	Notifier                `yaml:"notifier"`
	Scheduler               `yaml:"scheduler"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"`
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ настройки подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Gateway адрес HTTP-шлюза мессенджера, через который уходят сообщения клиентам
type Gateway struct {
	GatewayURL     string        `yaml:"url" env:"GATEWAY_URL"`
	GatewayToken   string        `yaml:"token" env:"GATEWAY_TOKEN"`
	GatewayTimeout time.Duration `yaml:"timeout" env-default:"10s"`
}

// WebhookAuth секрет для проверки JWT входящего вебхука
type WebhookAuth struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"WEBHOOK_JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"720h"`
}

// Bot поведение диспетчера команд
type Bot struct {
	Prefix             string   `yaml:"prefix" env-default:"🤖 "`
	CommandPrefix      string   `yaml:"command_prefix" env-default:"!"`
	AdminPhones        []string `yaml:"admin_phones" env:"BOT_ADMIN_PHONES" env-separator:","`
	OperatorChat       string   `yaml:"operator_chat" env:"BOT_OPERATOR_CHAT"`
	OwnerOnly          bool     `yaml:"owner_only" env-default:"true"`
	DefaultCountryCode string   `yaml:"default_country_code" env-default:"593"`
}

// Session хранилище диалоговых сессий
type Session struct {
	Backend string        `yaml:"backend" env:"SESSION_BACKEND" env-default:"memory"`
	Timeout time.Duration `yaml:"timeout" env-default:"120s"`
}

// Notifier очередь исходящих уведомлений
type Notifier struct {
	Backend     string        `yaml:"backend" env:"NOTIFIER_BACKEND" env-default:"local"`
	Delay       time.Duration `yaml:"delay" env-default:"1500ms"`
	Jitter      time.Duration `yaml:"jitter" env-default:"500ms"`
	MaxAttempts int           `yaml:"max_attempts" env-default:"3"`
	QueueSize   int           `yaml:"queue_size" env-default:"1024"`
}

// Scheduler расписание ежедневных задач
type Scheduler struct {
	RemindersAt  string `yaml:"reminders_at" env-default:"09:00"`
	ReportAt     string `yaml:"report_at" env-default:"08:00"`
	ReminderDays int    `yaml:"reminder_days" env-default:"3"`
	ReportDays   int    `yaml:"report_days" env-default:"7"`
	Timezone     string `yaml:"timezone" env:"TZ" env-default:"America/Guayaquil"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	// .env необязателен, переменные могут прийти из окружения
	_ = godotenv.Load()

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

// Load читает конфиг из файла и дополняет его переменными окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Session.Timeout <= 0 {
		return nil, fmt.Errorf("%s: session timeout must be positive", op)
	}
	return &cfg, nil
}

// IsAdmin сообщает, относится ли телефон к привилегированным операторам.
func (b Bot) IsAdmin(phone string) bool {
	for _, p := range b.AdminPhones {
		if p == phone {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Session:\n"+
			"  Backend: %s\n"+
			"  Timeout: %s\n"+
			"Notifier:\n"+
			"  Backend: %s\n"+
			"  Delay: %s\n"+
			"Scheduler:\n"+
			"  RemindersAt: %s\n"+
			"  ReportAt: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.Session.Backend,
		c.Session.Timeout,
		c.Notifier.Backend,
		c.Delay,
		c.RemindersAt,
		c.ReportAt,
	)
}
