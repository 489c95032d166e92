package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultExchangeRate is used when TASA_BCV is missing or unparsable.
const DefaultExchangeRate = 36.50

type Config struct {
	// Telegram
	BotToken string
	AdminID  int64

	// Payment details shown to users (pago móvil)
	PhoneNumber string
	NationalID  string
	BankName    string

	// Bolívares per USD
	ExchangeRate float64

	// HTTP / keep-alive
	Port              int
	KeepAliveURL      string
	KeepAliveInterval time.Duration

	// Audit trail database
	DBPath string
}

func Load() *Config {
	cfg := &Config{
		BotToken: getEnv("TELEGRAM_TOKEN", ""),
		AdminID:  parseAdminID(getEnv("YOUR_TELEGRAM_ID", "")),

		PhoneNumber: getEnv("NUMERO_TELEFONO", ""),
		NationalID:  getEnv("CEDULA_IDENTIDAD", ""),
		BankName:    getEnv("BANCO", ""),

		ExchangeRate: parseExchangeRate(getEnv("TASA_BCV", "")),

		Port:   getEnvInt("PORT", 5000),
		DBPath: getEnv("DB_PATH", "./apoyo.db"),
	}

	cfg.KeepAliveInterval = time.Duration(getEnvInt("KEEP_ALIVE_INTERVAL_SEC", 240)) * time.Second
	cfg.KeepAliveURL = getEnv("KEEP_ALIVE_URL", "http://localhost:"+strconv.Itoa(cfg.Port)+"/ping")

	return cfg
}

// AdminConfigured reports whether an admin chat id is set.
func (c *Config) AdminConfigured() bool {
	return c.AdminID != 0
}

// PaymentConfigured reports whether every field of the payment instructions
// message is available.
func (c *Config) PaymentConfigured() bool {
	return c.PhoneNumber != "" && c.NationalID != "" && c.BankName != "" && c.ExchangeRate > 0
}

func parseAdminID(val string) int64 {
	if val == "" {
		return 0
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		slog.Error("YOUR_TELEGRAM_ID is not a valid number", "value", val)
		return 0
	}
	return id
}

// parseExchangeRate accepts both comma and dot decimal separators.
func parseExchangeRate(val string) float64 {
	if val == "" {
		return DefaultExchangeRate
	}
	rate, err := strconv.ParseFloat(strings.ReplaceAll(val, ",", "."), 64)
	if err != nil {
		slog.Error("could not parse TASA_BCV, using default",
			"value", val, "default", DefaultExchangeRate)
		return DefaultExchangeRate
	}
	return rate
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
