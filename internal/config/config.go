package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/poolstate"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/quote"
)

type Config struct {
	// Indexer
	BlockfrostURL       string
	BlockfrostProjectID string
	BlockfrostRPS       float64

	// Pool discovery
	PoolIndexURL       string
	LegacyPoolPageSize int
	ReservePolicy      string

	// Quoting
	DefaultSlippage float64

	// HTTP client settings
	HTTPTimeout time.Duration

	// Wallet bridge
	WalletBridgeURL string

	// Confirmation tracking
	ConfirmDepth        uint64
	ConfirmPollInterval time.Duration

	// API server
	APIAddr string
	APIKey  string
	DevMode bool

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// AI intent parser
	OpenRouterAPIKey string
	AIModel          string

	// EVM wallet path
	EVMRPCURL           string
	AssistantPrivateKey string

	// Trade limits, zero disables
	RiskMaxSwapADA    int64
	RiskDailyLimitADA int64
	RiskMaxImpactBps  int64
	RiskAllowedTokens []string

	// Price crawler
	GeckoAPIURL       string
	TokenIDs          []string
	PriceDBPath       string
	PricePollInterval time.Duration
}

func Load() *Config {
	return &Config{
		// Indexer
		BlockfrostURL:       getEnv("BLOCKFROST_URL", "https://cardano-mainnet.blockfrost.io/api/v0"),
		BlockfrostProjectID: getEnv("BLOCKFROST_PROJECT_ID", ""),
		BlockfrostRPS:       getFloatEnv("BLOCKFROST_RPS", 10),

		// Pools
		PoolIndexURL:       getEnv("POOL_INDEX_URL", "https://api-mainnet-prod.minswap.org"),
		LegacyPoolPageSize: getIntEnv("LEGACY_POOL_PAGE_SIZE", 100),
		ReservePolicy:      getEnv("RESERVE_POLICY", string(poolstate.PolicyOverwrite)),

		DefaultSlippage: getFloatEnv("DEFAULT_SLIPPAGE", 0.01),
		HTTPTimeout:     getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		WalletBridgeURL: getEnv("WALLET_BRIDGE_URL", ""),

		ConfirmDepth:        uint64(getIntEnv("CONFIRM_DEPTH", 1)),
		ConfirmPollInterval: getDurationEnv("CONFIRM_POLL_INTERVAL", 10*time.Second),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "cardano"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// AI
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", "openai/gpt-4.1-mini"),

		// EVM
		EVMRPCURL:           getEnv("EVM_RPC_URL", ""),
		AssistantPrivateKey: getEnv("ASSISTANT_PRIVATE_KEY", ""),

		// Limits
		RiskMaxSwapADA:    getInt64Env("RISK_MAX_SWAP_ADA", 0),
		RiskDailyLimitADA: getInt64Env("RISK_DAILY_LIMIT_ADA", 0),
		RiskMaxImpactBps:  getInt64Env("RISK_MAX_PRICE_IMPACT_BPS", 0),
		RiskAllowedTokens: getListEnv("RISK_ALLOWED_TOKENS", nil),

		// Prices
		GeckoAPIURL:       getEnv("GECKO_API_URL", "https://api.coingecko.com/api/v3/simple/price"),
		TokenIDs:          getListEnv("TOKEN_IDS", []string{"cardano"}),
		PriceDBPath:       getEnv("PRICE_DB_PATH", "token_prices.sqlite"),
		PricePollInterval: getDurationEnv("PRICE_POLL_INTERVAL", 5*time.Minute),
	}
}

// Validate fails when a setting every swap path needs is missing or
// malformed. There is no built-in indexer credential.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BlockfrostProjectID) == "" {
		return fmt.Errorf("%w: BLOCKFROST_PROJECT_ID is required", apperr.ErrInvalidParameters)
	}
	if c.BlockfrostURL == "" || c.PoolIndexURL == "" {
		return fmt.Errorf("%w: BLOCKFROST_URL and POOL_INDEX_URL must not be empty", apperr.ErrInvalidParameters)
	}
	if c.LegacyPoolPageSize <= 0 {
		return fmt.Errorf("%w: LEGACY_POOL_PAGE_SIZE must be positive", apperr.ErrInvalidParameters)
	}
	if _, err := poolstate.ParsePolicy(c.ReservePolicy); err != nil {
		return err
	}
	if _, err := quote.SlippagePerMille(c.DefaultSlippage); err != nil {
		return fmt.Errorf("DEFAULT_SLIPPAGE: %w", err)
	}
	if c.RiskMaxSwapADA < 0 || c.RiskDailyLimitADA < 0 || c.RiskMaxImpactBps < 0 || c.RiskMaxImpactBps > 10_000 {
		return fmt.Errorf("%w: RISK_* limits must be non-negative and impact at most 10000 bps", apperr.ErrInvalidParameters)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: HTTP_TIMEOUT must be positive", apperr.ErrInvalidParameters)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getInt64Env(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
