package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	databaseDSN       = "DATABASE_DSN"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	exchangeKeyENV    = "EXCHANGE_API_KEY"
	exchangeSecretENV = "EXCHANGE_API_SECRET"
	exchangePassENV   = "EXCHANGE_PASSPHRASE"
)

// Config ...
type Config struct {
	DB string `yaml:"db_dsn"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Exchange struct {
		RestURL    string `yaml:"rest_url"`
		WsURL      string `yaml:"ws_url"`
		APIKey     string `yaml:"api_key"`
		APISecret  string `yaml:"api_secret"`
		Passphrase string `yaml:"passphrase"`
		Testnet    bool   `yaml:"testnet"`
	} `yaml:"exchange"`

	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`

	Tracing struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"tracing"`

	LogFile string `yaml:"log_file"`

	// Symbols and timeframes the core operates on; the ticker list
	// collaborator overrides these at runtime.
	Watchlist  []string `yaml:"watchlist"`
	Timeframes []string `yaml:"timeframes"`

	// Orders fire on closed bars of this timeframe only; the others feed
	// indicators and the 15m confirmation filter.
	TradeTimeframe string `yaml:"trade_timeframe"`

	// Ingestion
	LookbackDays int `yaml:"lookback_days"`

	// Quote-currency cash the live ledger starts from.
	InitialCash float64 `yaml:"initial_cash"`

	// Order lifecycle tracker
	TrackerPollInterval time.Duration
	TrackerMaxPolls     int

	// Exchange retry budget
	ExchangeMaxRetries int
	ExchangeBackoffMin time.Duration
	ExchangeBackoffMax time.Duration
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		LookbackDays: intFromEnv("LOOKBACK_DAYS", 365),

		TrackerPollInterval: durationFromEnv("TRACKER_POLL_INTERVAL", "5s"),
		TrackerMaxPolls:     intFromEnv("TRACKER_MAX_POLLS", 20),

		ExchangeMaxRetries: intFromEnv("EXCHANGE_MAX_RETRIES", 5),
		ExchangeBackoffMin: durationFromEnv("EXCHANGE_BACKOFF_MIN", "2s"),
		ExchangeBackoffMax: durationFromEnv("EXCHANGE_BACKOFF_MAX", "10s"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if k := os.Getenv(exchangeKeyENV); k != "" {
		config.Exchange.APIKey = k
	}
	if s := os.Getenv(exchangeSecretENV); s != "" {
		config.Exchange.APISecret = s
	}
	if p := os.Getenv(exchangePassENV); p != "" {
		config.Exchange.Passphrase = p
	}

	if config.Exchange.RestURL == "" {
		config.Exchange.RestURL = "https://api.bitget.com"
	}
	if config.Exchange.WsURL == "" {
		config.Exchange.WsURL = "wss://ws.bitget.com/v2/ws/public"
	}
	if len(config.Timeframes) == 0 {
		config.Timeframes = []string{"15m", "1h"}
	}
	if config.TradeTimeframe == "" {
		config.TradeTimeframe = "1h"
	}
	if config.InitialCash <= 0 {
		config.InitialCash = 1000
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
