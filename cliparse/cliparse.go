package cliparse

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/govboard/referendum"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	LogLevel     string

	// Secrets
	JWTSecret     string
	EventSecret   string
	SubscanAPIKey string

	// Chain
	Network        string
	WSProvider     string
	ChainDecimals  int
	ChainUnit      string
	LoadingTimeout time.Duration

	// Image uploads
	ImageDir     string
	ImageBaseURL string
}

// LoadEnvFile reads KEY=value pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("govboard", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "JWT signing secret (prefer env)")
	fs.StringVar(&cfg.EventSecret, "event-secret", "", "Event hook shared secret (prefer env)")
	fs.StringVar(&cfg.SubscanAPIKey, "subscan-key", "", "Subscan API key (prefer env)")

	fs.StringVar(&cfg.Network, "network", "", "Network name, e.g. polkadot or kusama")
	fs.StringVar(&cfg.WSProvider, "ws", "", "Chain websocket RPC endpoint")
	fs.DurationVar(&cfg.LoadingTimeout, "loading-timeout", 0, "How long vote data may stay loading")
	fs.StringVar(&cfg.ImageDir, "image-dir", "", "Directory for uploaded images")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 8010 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = envOr("DATABASE_TYPE", "sqlite")
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = envOr("LOG_LEVEL", "info")
	}

	// Secrets - MUST be provided
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}

	if cfg.EventSecret == "" {
		cfg.EventSecret = os.Getenv("EVENT_SECRET")
	}
	if cfg.EventSecret == "" {
		return Config{}, errors.New("EVENT_SECRET required")
	}

	if cfg.SubscanAPIKey == "" {
		cfg.SubscanAPIKey = os.Getenv("SUBSCAN_API_KEY")
	}
	if cfg.SubscanAPIKey == "" {
		return Config{}, &referendum.ConfigurationError{Setting: "SUBSCAN_API_KEY"}
	}

	if cfg.Network == "" {
		cfg.Network = envOr("NETWORK", "polkadot")
	}
	if cfg.WSProvider == "" {
		cfg.WSProvider = envOr("WS_PROVIDER", "wss://rpc.polkadot.io")
	}

	cfg.ChainUnit = envOr("CHAIN_UNIT", "DOT")
	cfg.ChainDecimals = 10
	if s := os.Getenv("CHAIN_DECIMALS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Config{}, errors.New("invalid CHAIN_DECIMALS env variable")
		}
		cfg.ChainDecimals = n
	}

	if cfg.LoadingTimeout == 0 {
		if s := os.Getenv("LOADING_TIMEOUT"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return Config{}, errors.New("invalid LOADING_TIMEOUT env variable")
			}
			cfg.LoadingTimeout = d
		} else {
			cfg.LoadingTimeout = referendum.DefaultLoadingTimeout
		}
	}

	if cfg.ImageDir == "" {
		cfg.ImageDir = envOr("IMAGE_DIR", "./uploads")
	}
	cfg.ImageBaseURL = envOr("IMAGE_BASE_URL", "/images")

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
