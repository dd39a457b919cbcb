package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the trading engine.
type Config struct {
	Port     string
	GRPCPort string

	// Market data
	Symbols          []string
	UseMockFeed      bool
	MockFeedInterval time.Duration
	SymbolTTL        time.Duration // drop cached symbols not ticked for this long, 0 keeps them

	// Event bus
	BusTimerInterval  time.Duration
	BusQueueSize      int
	BusOverflowPolicy string // block, drop_oldest or reject

	// Venue
	Venue            string
	PaperFeeRate     float64 // decimal (e.g. 0.0004 = 4 bps)
	PaperSlippageBps float64
	OrderRateLimit   float64 // orders per second
	OrderRateBurst   int

	// Risk thresholds
	RiskMaxNotional    float64
	RiskMaxOpenOrders  int
	RiskMaxDailyTrades int

	// Auth
	JWTSecret string

	// Localization
	Language string // "en" or "zh"

	Version    string
	ConfigFile string
}

// Load reads environment variables (optionally via .env) into Config, then
// applies the YAML file named by CONFIG_FILE when set.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		GRPCPort:           getEnv("GRPC_PORT", "9090"),
		Symbols:            splitAndTrim(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT")),
		UseMockFeed:        getEnv("USE_MOCK_FEED", "true") == "true",
		MockFeedInterval:   getEnvDuration("MOCK_FEED_INTERVAL", time.Second),
		SymbolTTL:          getEnvDuration("SYMBOL_TTL", 24*time.Hour),
		BusTimerInterval:   getEnvDuration("BUS_TIMER_INTERVAL", time.Second),
		BusQueueSize:       getEnvInt("BUS_QUEUE_SIZE", 65536),
		BusOverflowPolicy:  strings.ToLower(getEnv("BUS_OVERFLOW_POLICY", "reject")),
		Venue:              strings.ToLower(getEnv("VENUE", "paper")),
		PaperFeeRate:       getEnvFloat("PAPER_FEE_RATE", 0.0004),
		PaperSlippageBps:   getEnvFloat("PAPER_SLIPPAGE_BPS", 0),
		OrderRateLimit:     getEnvFloat("ORDER_RATE_LIMIT", 10),
		OrderRateBurst:     getEnvInt("ORDER_RATE_BURST", 20),
		RiskMaxNotional:    getEnvFloat("RISK_MAX_NOTIONAL", 100000),
		RiskMaxOpenOrders:  getEnvInt("RISK_MAX_OPEN_ORDERS", 20),
		RiskMaxDailyTrades: getEnvInt("RISK_MAX_DAILY_TRADES", 1000),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		Language:           getEnv("LANGUAGE", "en"),
		Version:            getEnv("APP_VERSION", "dev"),
		ConfigFile:         os.Getenv("CONFIG_FILE"),
	}

	if cfg.ConfigFile != "" {
		if err := cfg.ApplyFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// fileConfig is the YAML overlay. Absent keys leave the env value in place.
type fileConfig struct {
	Symbols []string `yaml:"symbols"`
	Bus     struct {
		TimerInterval string `yaml:"timer_interval"`
		QueueSize     int    `yaml:"queue_size"`
		Overflow      string `yaml:"overflow"`
	} `yaml:"bus"`
	Paper struct {
		FeeRate     *float64 `yaml:"fee_rate"`
		SlippageBps *float64 `yaml:"slippage_bps"`
	} `yaml:"paper"`
	Orders struct {
		RateLimit *float64 `yaml:"rate_limit"`
		RateBurst int      `yaml:"rate_burst"`
	} `yaml:"orders"`
	Risk struct {
		MaxNotional    *float64 `yaml:"max_notional"`
		MaxOpenOrders  *int     `yaml:"max_open_orders"`
		MaxDailyTrades *int     `yaml:"max_daily_trades"`
	} `yaml:"risk"`
}

// ApplyFile overlays settings from a YAML file.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if len(f.Symbols) > 0 {
		c.Symbols = f.Symbols
	}
	if f.Bus.TimerInterval != "" {
		d, err := time.ParseDuration(f.Bus.TimerInterval)
		if err != nil {
			return fmt.Errorf("bus.timer_interval: %w", err)
		}
		c.BusTimerInterval = d
	}
	if f.Bus.QueueSize > 0 {
		c.BusQueueSize = f.Bus.QueueSize
	}
	if f.Bus.Overflow != "" {
		c.BusOverflowPolicy = strings.ToLower(f.Bus.Overflow)
	}
	if f.Paper.FeeRate != nil {
		c.PaperFeeRate = *f.Paper.FeeRate
	}
	if f.Paper.SlippageBps != nil {
		c.PaperSlippageBps = *f.Paper.SlippageBps
	}
	if f.Orders.RateLimit != nil {
		c.OrderRateLimit = *f.Orders.RateLimit
	}
	if f.Orders.RateBurst > 0 {
		c.OrderRateBurst = f.Orders.RateBurst
	}
	if f.Risk.MaxNotional != nil {
		c.RiskMaxNotional = *f.Risk.MaxNotional
	}
	if f.Risk.MaxOpenOrders != nil {
		c.RiskMaxOpenOrders = *f.Risk.MaxOpenOrders
	}
	if f.Risk.MaxDailyTrades != nil {
		c.RiskMaxDailyTrades = *f.Risk.MaxDailyTrades
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, strings.ToUpper(t))
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
