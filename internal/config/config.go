package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the environment-driven service configuration. Strategy
// definitions live in YAML files; everything operational comes from env.
type Config struct {
	Environment string
	LogLevel    string

	Server struct {
		Port int
	}

	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
		Enabled  bool
	}

	Exchange struct {
		APIKey            string
		Secret            string
		Testnet           bool
		RequestsPerSecond float64
		FetchTimeout      time.Duration
	}

	Scanner struct {
		UniverseSize  int
		QuoteCurrency string
		BarLimit      int
		SetupTTL      time.Duration
		ScanInterval  time.Duration
		StrategyDir   string
	}

	Notifications struct {
		TelegramToken  string
		TelegramChatID int64
	}
}

// Load reads .env when present, then builds the configuration from the
// environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	cfg.Server.Port = getEnvInt("SERVER_PORT", 8080)

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "blueprint")
	cfg.Database.Password = getEnv("DB_PASSWORD", "blueprint")
	cfg.Database.Name = getEnv("DB_NAME", "blueprint")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", true)

	cfg.Exchange.APIKey = getEnv("BYBIT_API_KEY", "")
	cfg.Exchange.Secret = getEnv("BYBIT_API_SECRET", "")
	cfg.Exchange.Testnet = getEnvBool("BYBIT_TESTNET", false)
	cfg.Exchange.RequestsPerSecond = getEnvFloat("BYBIT_RPS", 5.0)
	cfg.Exchange.FetchTimeout = getEnvDuration("BYBIT_FETCH_TIMEOUT", 30*time.Second)

	cfg.Scanner.UniverseSize = getEnvInt("SCANNER_UNIVERSE_SIZE", 50)
	cfg.Scanner.QuoteCurrency = getEnv("SCANNER_QUOTE_CURRENCY", "USDT")
	cfg.Scanner.BarLimit = getEnvInt("SCANNER_BAR_LIMIT", 250)
	cfg.Scanner.SetupTTL = getEnvDuration("SCANNER_SETUP_TTL", 48*time.Hour)
	cfg.Scanner.ScanInterval = getEnvDuration("SCANNER_INTERVAL", time.Hour)
	cfg.Scanner.StrategyDir = getEnv("SCANNER_STRATEGY_DIR", "strategies")

	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnvInt64("TELEGRAM_CHAT_ID", 0)

	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
