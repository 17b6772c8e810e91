package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Ops HTTP surface
	Port    string
	GinMode string

	// Redis (event bus fan-out, optional)
	RedisAddr string

	// Solana RPC
	RPCEndpoint              string
	WSEndpoint               string
	Commitment               string
	RPCTimeout               time.Duration
	ComputeUnitLimit         uint32
	PriorityFeeMicroLamports uint64

	// Launchpad-operated accounts (§6); empty means "use the shipped
	// pump.fun mainnet defaults" (onchain.Default*).
	GlobalStateOverride    string
	FeeRecipientOverride   string
	EventAuthorityOverride string
	FeeProgramOverride     string

	// Default execution parameters
	DefaultSlippageBps uint64
	DefaultFeeBps      uint64

	// Single-wallet signing policy (§4.5's PolicyGate)
	WalletPrivateKey             string
	MaxTransactionAmountLamports uint64
	DailyVolumeLimitLamports     uint64
	MaxTransactionsPerDay        int
	MinProfitThresholdLamports   int64

	// Default strategy allocation ceilings. At startup every stored strategy
	// is registered with the capital manager, and these values stand in
	// where the strategy's own max_allocation_percent/max_positions is zero.
	// A later SetRiskProfile call does not re-register the strategy with the
	// capital manager.
	DefaultMaxAllocationPercent float64
	DefaultMaxPositions         int

	// Consensus model endpoints (§4.11), comma-separated "name=url" pairs
	// parsed by the consensus package itself; kept as a raw string here so
	// config stays a flat env-var mirror.
	ConsensusModels         string
	ConsensusThreshold      float64
	ConsensusTimeout        time.Duration
	ConsensusReviewInterval time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "curveforge"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		RPCEndpoint:              getEnv("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		WSEndpoint:               getEnv("SOLANA_WS_ENDPOINT", "wss://api.mainnet-beta.solana.com"),
		Commitment:               getEnv("SOLANA_COMMITMENT", "confirmed"),
		RPCTimeout:               getDuration("SOLANA_RPC_TIMEOUT", 10*time.Second),
		ComputeUnitLimit:         uint32(getUint("COMPUTE_UNIT_LIMIT", 200_000)),
		PriorityFeeMicroLamports: getUint("PRIORITY_FEE_MICRO_LAMPORTS", 10_000),

		GlobalStateOverride:    getEnv("GLOBAL_STATE_ACCOUNT", ""),
		FeeRecipientOverride:   getEnv("FEE_RECIPIENT_ACCOUNT", ""),
		EventAuthorityOverride: getEnv("EVENT_AUTHORITY_ACCOUNT", ""),
		FeeProgramOverride:     getEnv("FEE_PROGRAM_ACCOUNT", ""),

		DefaultSlippageBps: getUint("DEFAULT_SLIPPAGE_BPS", 300),
		DefaultFeeBps:      getUint("DEFAULT_FEE_BPS", 100),

		WalletPrivateKey:             getEnv("SOLANA_WALLET_PRIVATE_KEY", ""),
		MaxTransactionAmountLamports: getUint("MAX_TRANSACTION_AMOUNT_LAMPORTS", 5_000_000_000),
		DailyVolumeLimitLamports:     getUint("DAILY_VOLUME_LIMIT_LAMPORTS", 50_000_000_000),
		MaxTransactionsPerDay:        int(getUint("MAX_TRANSACTIONS_PER_DAY", 200)),
		MinProfitThresholdLamports:   int64(getUint("MIN_PROFIT_THRESHOLD_LAMPORTS", 0)),

		DefaultMaxAllocationPercent: getFloat("DEFAULT_MAX_ALLOCATION_PERCENT", 20.0),
		DefaultMaxPositions:         int(getUint("DEFAULT_MAX_POSITIONS", 5)),

		ConsensusModels:         getEnv("CONSENSUS_MODELS", ""),
		ConsensusThreshold:      getFloat("CONSENSUS_THRESHOLD", 0.6),
		ConsensusTimeout:        getDuration("CONSENSUS_TIMEOUT", 15*time.Second),
		ConsensusReviewInterval: getDuration("CONSENSUS_REVIEW_INTERVAL", time.Hour),
	}, nil
}

func (c *Config) DBDSN() string {
	return "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser + " dbname=" + c.DBName + " password=" + c.DBPassword + " sslmode=" + c.DBSSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
