package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config contém as configurações da aplicação
type Config struct {
	TelegramBotToken string
	TelegramChatID   int64
	DatabasePath     string

	ScanSchedule   string
	ScanTimeout    time.Duration
	WorkerCount    int
	AlertThreshold float64 // variação mínima de preço (%) para alertar

	MaxPages        int
	HTTPTimeout     time.Duration
	UserAgent       string
	DefaultCurrency string

	RedisAddr string // vazio usa lease em memória
	LeaseTTL  time.Duration

	LogLevel       string
	LogDevelopment bool
	MetricsAddr    string // vazio desativa o endpoint /metrics
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_PATH", "./competitors.db")
	v.SetDefault("SCAN_SCHEDULE", "@every 6h")
	v.SetDefault("SCAN_TIMEOUT", 10*time.Minute)
	v.SetDefault("WORKER_COUNT", 4)
	v.SetDefault("PRICE_ALERT_THRESHOLD", 5.0)
	v.SetDefault("MAX_PAGES", 50)
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("USER_AGENT", "")
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LEASE_TTL", 30*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", 0)
}

// Load carrega as configurações: valores padrão, depois config.yaml (opcional,
// em configPath) e por fim variáveis de ambiente.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath == "" {
		configPath = "."
	}
	v.AddConfigPath(configPath)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("erro ao ler config.yaml: %w", err)
		}
	}

	cfg := &Config{
		TelegramBotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   v.GetInt64("TELEGRAM_CHAT_ID"),
		DatabasePath:     v.GetString("DATABASE_PATH"),
		ScanSchedule:     v.GetString("SCAN_SCHEDULE"),
		ScanTimeout:      v.GetDuration("SCAN_TIMEOUT"),
		WorkerCount:      v.GetInt("WORKER_COUNT"),
		AlertThreshold:   v.GetFloat64("PRICE_ALERT_THRESHOLD"),
		MaxPages:         v.GetInt("MAX_PAGES"),
		HTTPTimeout:      v.GetDuration("HTTP_TIMEOUT"),
		UserAgent:        v.GetString("USER_AGENT"),
		DefaultCurrency:  v.GetString("DEFAULT_CURRENCY"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		LeaseTTL:         v.GetDuration("LEASE_TTL"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogDevelopment:   v.GetBool("LOG_DEVELOPMENT"),
		MetricsAddr:      v.GetString("METRICS_ADDR"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifica valores inválidos
func (c *Config) Validate() error {
	switch {
	case c.DatabasePath == "":
		return errors.New("DATABASE_PATH não configurado")
	case c.WorkerCount <= 0:
		return fmt.Errorf("WORKER_COUNT deve ser positivo, recebido %d", c.WorkerCount)
	case c.MaxPages <= 0:
		return fmt.Errorf("MAX_PAGES deve ser positivo, recebido %d", c.MaxPages)
	case c.ScanTimeout <= 0:
		return errors.New("SCAN_TIMEOUT deve ser positivo")
	case c.AlertThreshold < 0:
		return errors.New("PRICE_ALERT_THRESHOLD não pode ser negativo")
	case c.RedisAddr != "" && c.LeaseTTL <= 2*c.ScanTimeout:
		// o lease no Redis expira sozinho; precisa sobreviver ao scan mais longo
		return fmt.Errorf("LEASE_TTL (%s) deve ser maior que o dobro de SCAN_TIMEOUT (%s)", c.LeaseTTL, c.ScanTimeout)
	}
	return nil
}

// RequireTelegram verifica as configurações necessárias para o bot
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN não configurado")
	}
	return nil
}
