package params

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/uhyunpark/hookorder/pkg/order"
)

// Addresses used by the default sweep
const (
	USDTAddress       = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	USDCAddress       = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	TrampolineAddress = "0x01DcB88678aedD0C4cC9552B20F4718550250574"
	RobberAddress     = "0x9dfB98A93e96c9bf3EA2C3Fb06C52482D94d10a9"
)

type Network struct {
	ChainID      uint64 `yaml:"chain_id"`
	RPCURL       string `yaml:"rpc_url"`
	OrderBookURL string `yaml:"orderbook_url"` // preset for ChainID when empty
	ExplorerURL  string `yaml:"explorer_url"`  // preset for ChainID when empty
}

// OrderBook returns the configured order-book URL or the chain preset
func (n Network) OrderBook() string {
	if n.OrderBookURL != "" {
		return n.OrderBookURL
	}
	return presets[n.ChainID].OrderBookURL
}

func (n Network) Explorer() string {
	if n.ExplorerURL != "" {
		return n.ExplorerURL
	}
	return presets[n.ChainID].ExplorerURL
}

// Wallet key material is only read from the environment
type Wallet struct {
	PrivateKey      string `yaml:"-"`
	Mnemonic        string `yaml:"-"`
	DerivationPath  string `yaml:"derivation_path"`
	ExpectedAddress string `yaml:"expected_address"` // refuse to sign with any other key
}

// Sweep describes the transfer-hook order the CLI places
type Sweep struct {
	Token         string        `yaml:"token"`
	Holder        string        `yaml:"holder"`
	Recipient     string        `yaml:"recipient"`
	BuyToken      string        `yaml:"buy_token"`
	BuyAmount     string        `yaml:"buy_amount"`
	FeeAmount     string        `yaml:"fee_amount"`
	Validity      time.Duration `yaml:"validity"`
	SigningScheme string        `yaml:"signing_scheme"`
	UploadAppData bool          `yaml:"upload_app_data"`
}

type AppData struct {
	AppCode     string `yaml:"app_code"`
	Environment string `yaml:"environment"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // stdout only when empty
}

// Server configures the local order-book service
type Server struct {
	Addr           string        `yaml:"addr"`
	DataDir        string        `yaml:"data_dir"`
	MinValidity    time.Duration `yaml:"min_validity"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type Config struct {
	Network Network `yaml:"network"`
	Wallet  Wallet  `yaml:"wallet"`
	Sweep   Sweep   `yaml:"sweep"`
	AppData AppData `yaml:"app_data"`
	Log     Log     `yaml:"log"`
	Server  Server  `yaml:"server"`

	// first malformed environment value, reported by the Validate methods
	envErr error
}

func Default() Config {
	return Config{
		Network: Network{
			ChainID: 1,
		},
		Wallet: Wallet{
			DerivationPath:  "m/44'/60'/0'/0/0",
			ExpectedAddress: RobberAddress,
		},
		Sweep: Sweep{
			Token:         USDTAddress,
			Holder:        TrampolineAddress,
			Recipient:     RobberAddress,
			BuyToken:      USDCAddress,
			BuyAmount:     "1",
			FeeAmount:     "0",
			Validity:      24 * time.Hour,
			SigningScheme: "eip712",
		},
		AppData: AppData{
			AppCode: "CoW Swap",
		},
		Log: Log{
			Level: "info",
		},
		Server: Server{
			Addr:        ":8080",
			DataDir:     "data/orderbook",
			MinValidity: time.Minute,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()
	loadDotEnv(envPath)
	overrideWithEnv(&cfg)
	return cfg
}

// LoadFile reads a YAML file over the defaults, then applies the environment
// Priority: ENV > .env file > YAML > defaults
func LoadFile(path, envPath string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &ConfigError{Field: "file", Err: err}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Field: "file", Err: fmt.Errorf("parse %s: %w", path, err)}
	}

	loadDotEnv(envPath)
	overrideWithEnv(&cfg)
	return cfg, nil
}

func loadDotEnv(envPath string) {
	// Optional: a missing .env is fine
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}
}

func overrideWithEnv(cfg *Config) {
	if id := os.Getenv("CHAIN_ID"); id != "" {
		if n, err := strconv.ParseUint(id, 10, 64); err == nil {
			cfg.Network.ChainID = n
		} else {
			cfg.badEnv("CHAIN_ID", err)
		}
	}

	// NODE_URL may be a bare Infura project id
	if node := os.Getenv("NODE_URL"); node != "" && os.Getenv("RPC_URL") == "" {
		if strings.Contains(node, "://") {
			cfg.Network.RPCURL = node
		} else {
			cfg.Network.RPCURL = "https://mainnet.infura.io/v3/" + node
		}
	}
	cfg.Network.RPCURL = getEnv("RPC_URL", cfg.Network.RPCURL)
	cfg.Network.OrderBookURL = getEnv("ORDERBOOK_URL", cfg.Network.OrderBookURL)
	cfg.Network.ExplorerURL = getEnv("EXPLORER_URL", cfg.Network.ExplorerURL)

	cfg.Wallet.PrivateKey = getEnv("PRIVATE_KEY", cfg.Wallet.PrivateKey)
	cfg.Wallet.Mnemonic = getEnv("MNEMONIC", cfg.Wallet.Mnemonic)
	cfg.Wallet.DerivationPath = getEnv("DERIVATION_PATH", cfg.Wallet.DerivationPath)
	if v, ok := os.LookupEnv("EXPECTED_ADDRESS"); ok {
		cfg.Wallet.ExpectedAddress = v // empty disables the check
	}

	cfg.Sweep.Token = getEnv("SWEEP_TOKEN", cfg.Sweep.Token)
	cfg.Sweep.Holder = getEnv("SWEEP_HOLDER", cfg.Sweep.Holder)
	cfg.Sweep.Recipient = getEnv("SWEEP_RECIPIENT", cfg.Sweep.Recipient)
	cfg.Sweep.BuyToken = getEnv("BUY_TOKEN", cfg.Sweep.BuyToken)
	cfg.Sweep.BuyAmount = getEnv("BUY_AMOUNT", cfg.Sweep.BuyAmount)
	cfg.Sweep.FeeAmount = getEnv("FEE_AMOUNT", cfg.Sweep.FeeAmount)
	cfg.Sweep.SigningScheme = getEnv("SIGNING_SCHEME", cfg.Sweep.SigningScheme)
	if v := os.Getenv("ORDER_VALIDITY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sweep.Validity = d
		} else {
			cfg.badEnv("ORDER_VALIDITY", err)
		}
	}
	if v := os.Getenv("UPLOAD_APP_DATA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sweep.UploadAppData = b
		} else {
			cfg.badEnv("UPLOAD_APP_DATA", err)
		}
	}

	cfg.AppData.AppCode = getEnv("APP_CODE", cfg.AppData.AppCode)
	cfg.AppData.Environment = getEnv("APP_ENVIRONMENT", cfg.AppData.Environment)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	cfg.Server.Addr = getEnv("API_ADDR", cfg.Server.Addr)
	cfg.Server.DataDir = getEnv("DATA_DIR", cfg.Server.DataDir)
	if v := os.Getenv("MIN_VALIDITY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.MinValidity = d
		} else {
			cfg.badEnv("MIN_VALIDITY", err)
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
}

func (c *Config) badEnv(name string, err error) {
	if c.envErr == nil {
		c.envErr = &ConfigError{Field: name, Err: err}
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var (
	errRequired   = errors.New("required")
	errBadAddress = errors.New("not a hex address")
)

// ConfigError names the setting that is missing or malformed
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Validate checks everything the order placement needs except key material
func (c *Config) Validate() error {
	if c.envErr != nil {
		return c.envErr
	}
	if c.Network.ChainID == 0 {
		return &ConfigError{Field: "network.chain_id", Err: errRequired}
	}
	if c.Network.RPCURL == "" {
		return &ConfigError{Field: "network.rpc_url", Err: errRequired}
	}
	if c.Network.OrderBook() == "" {
		return &ConfigError{Field: "network.orderbook_url", Err: fmt.Errorf("%w: no preset for chain %d", errRequired, c.Network.ChainID)}
	}

	addrs := []struct {
		field string
		value string
	}{
		{"sweep.token", c.Sweep.Token},
		{"sweep.holder", c.Sweep.Holder},
		{"sweep.recipient", c.Sweep.Recipient},
		{"sweep.buy_token", c.Sweep.BuyToken},
	}
	for _, a := range addrs {
		if !common.IsHexAddress(a.value) {
			return &ConfigError{Field: a.field, Err: fmt.Errorf("%w: %q", errBadAddress, a.value)}
		}
	}
	if c.Wallet.ExpectedAddress != "" && !common.IsHexAddress(c.Wallet.ExpectedAddress) {
		return &ConfigError{Field: "wallet.expected_address", Err: fmt.Errorf("%w: %q", errBadAddress, c.Wallet.ExpectedAddress)}
	}

	if _, err := order.ParseAmount(c.Sweep.BuyAmount); err != nil {
		return &ConfigError{Field: "sweep.buy_amount", Err: err}
	}
	if _, err := order.ParseAmount(c.Sweep.FeeAmount); err != nil {
		return &ConfigError{Field: "sweep.fee_amount", Err: err}
	}
	if c.Sweep.Validity <= 0 {
		return &ConfigError{Field: "sweep.validity", Err: fmt.Errorf("must be positive, got %s", c.Sweep.Validity)}
	}
	switch c.Sweep.SigningScheme {
	case "eip712", "ethsign":
	default:
		return &ConfigError{Field: "sweep.signing_scheme", Err: fmt.Errorf("unsupported scheme %q", c.Sweep.SigningScheme)}
	}
	return nil
}

// ValidateWallet checks that exactly one source of key material is set
func (c *Config) ValidateWallet() error {
	switch {
	case c.Wallet.PrivateKey == "" && c.Wallet.Mnemonic == "":
		return &ConfigError{Field: "wallet", Err: fmt.Errorf("%w: PRIVATE_KEY or MNEMONIC", errRequired)}
	case c.Wallet.PrivateKey != "" && c.Wallet.Mnemonic != "":
		return &ConfigError{Field: "wallet", Err: errors.New("set PRIVATE_KEY or MNEMONIC, not both")}
	}
	return nil
}

// ValidateServer checks the order-book service settings
func (c *Config) ValidateServer() error {
	if c.envErr != nil {
		return c.envErr
	}
	if c.Network.ChainID == 0 {
		return &ConfigError{Field: "network.chain_id", Err: errRequired}
	}
	if c.Server.Addr == "" {
		return &ConfigError{Field: "server.addr", Err: errRequired}
	}
	if c.Server.MinValidity < 0 {
		return &ConfigError{Field: "server.min_validity", Err: fmt.Errorf("must not be negative, got %s", c.Server.MinValidity)}
	}
	return nil
}
