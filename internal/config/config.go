package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ChainConfig holds host chain configuration
type ChainConfig struct {
	OwnerAddress   string `mapstructure:"owner_address"`
	LedgerAddress  string `mapstructure:"ledger_address"`
	GenesisBalance string `mapstructure:"genesis_balance"`
}

// EmitterConfig holds event emitter configuration
type EmitterConfig struct {
	SubscribeBuffer int `mapstructure:"subscribe_buffer"`
}

// ShopConfig holds configuration for the shopd service
type ShopConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig  `mapstructure:"server"`
	NATS       NATSConfig    `mapstructure:"nats"`
	Chain      ChainConfig   `mapstructure:"chain"`
	Emitter    EmitterConfig `mapstructure:"emitter"`
}

// Owner parses the configured owner address
func (c *ChainConfig) Owner() (common.Address, error) {
	if !common.IsHexAddress(c.OwnerAddress) {
		return common.Address{}, fmt.Errorf("invalid chain.owner_address: %q", c.OwnerAddress)
	}
	return common.HexToAddress(c.OwnerAddress), nil
}

// Ledger parses the configured ledger contract address
func (c *ChainConfig) Ledger() (common.Address, error) {
	if !common.IsHexAddress(c.LedgerAddress) {
		return common.Address{}, fmt.Errorf("invalid chain.ledger_address: %q", c.LedgerAddress)
	}
	return common.HexToAddress(c.LedgerAddress), nil
}

// Genesis parses the configured genesis balance in the smallest native unit
func (c *ChainConfig) Genesis() (*big.Int, error) {
	balance, ok := new(big.Int).SetString(c.GenesisBalance, 10)
	if !ok || balance.Sign() < 0 {
		return nil, fmt.Errorf("invalid chain.genesis_balance: %q", c.GenesisBalance)
	}
	return balance, nil
}

// LoadShopConfig loads configuration for the shopd service
func LoadShopConfig(configFile string, envPath string) (*ShopConfig, error) {
	v := configureViper("shopd", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "shop.events")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "shopd")
	v.SetDefault("nats.connect_timeout", "30s")
	v.SetDefault("chain.ledger_address", "0x0000000000000000000000000000000000000100")
	v.SetDefault("chain.genesis_balance", "1000000000000000000")
	v.SetDefault("emitter.subscribe_buffer", 64)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config ShopConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The owner identity has no default: the ledger is unusable without it.
	if config.Chain.OwnerAddress == "" {
		return nil, errors.New("chain.owner_address is required")
	}

	return &config, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/shopd/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("SHOP_LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// NATS
		"nats.url",
		"nats.subject_prefix",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.connect_timeout",
		// Chain
		"chain.owner_address",
		"chain.ledger_address",
		"chain.genesis_balance",
		// Emitter
		"emitter.subscribe_buffer",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}
