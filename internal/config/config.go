package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"Bondr/internal/ledger"
	"Bondr/internal/tx"
)

// envPrefix prefixes every environment override.
const envPrefix = "BONDR_"

// Config holds the daemon settings after file, env and flag layering.
type Config struct {
	DataPath       string        // DataPath is the Pebble directory
	HTTPAddr       string        // HTTPAddr is the API listen address
	KeyPath        string        // KeyPath holds the node's ed25519 private key
	LogLevel       string        // LogLevel is debug, info, warn or error
	MaxAmount      uint64        // MaxAmount caps escrow and remittance amounts
	DepositPerByte uint64        // DepositPerByte prices record storage
	RateLimit      float64       // RateLimit is requests per second per signer, 0 disables
	RateBurst      int           // RateBurst is the per-signer burst
	ReplayWindow   time.Duration // ReplayWindow bounds envelope expiry and dedup memory
	IssuerURL      string        // IssuerURL selects the HTTP issuer, empty means local
	IssuerTimeout  time.Duration // IssuerTimeout bounds one issuance call
	Genesis        Genesis       // Genesis seeds a fresh store
}

// Genesis describes the state credited to an empty store.
type Genesis struct {
	NodeBalance uint64    `yaml:"nodeBalance"` // NodeBalance is credited to the node key
	Airdrops    []Airdrop `yaml:"airdrops"`
	Mint        *Mint     `yaml:"mint"`
}

// Airdrop credits native balance to one owner.
type Airdrop struct {
	Owner  string `yaml:"owner"`
	Amount uint64 `yaml:"amount"`
}

// Mint creates a token mint owned by the node key and credits the supply to it.
type Mint struct {
	Decimals uint8  `yaml:"decimals"`
	Supply   uint64 `yaml:"supply"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataPath:       "./data",
		HTTPAddr:       ":8080",
		KeyPath:        "./node.key",
		LogLevel:       "info",
		MaxAmount:      ledger.DefaultMaxAmount,
		DepositPerByte: ledger.DefaultDepositPerByte,
		RateLimit:      20,
		RateBurst:      40,
		ReplayWindow:   tx.DefaultReplayWindow,
		IssuerTimeout:  10 * time.Second,
	}
}

// Ledger returns the ledger parameters.
func (c Config) Ledger() ledger.Config {
	return ledger.Config{MaxAmount: c.MaxAmount, DepositPerByte: c.DepositPerByte}
}

// File is the YAML layout. Zero values leave the default in place.
type File struct {
	Node struct {
		DataPath string `yaml:"dataPath"`
		HTTPAddr string `yaml:"httpAddr"`
		KeyPath  string `yaml:"keyPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"node"`

	Ledger struct {
		MaxAmount      uint64 `yaml:"maxAmount"`
		DepositPerByte uint64 `yaml:"depositPerByte"`
	} `yaml:"ledger"`

	API struct {
		RateLimit    *float64      `yaml:"rateLimit"`
		RateBurst    int           `yaml:"rateBurst"`
		ReplayWindow time.Duration `yaml:"replayWindow"`
	} `yaml:"api"`

	Issuer struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"issuer"`

	Genesis Genesis `yaml:"genesis"`
}

// Load reads path (if non-empty) over the defaults, then applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s:\n%w", path, err)
		}

		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return cfg, fmt.Errorf("parse config %s:\n%w", path, err)
		}

		Merge(&cfg, f)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Merge copies every set field of src into dst.
func Merge(dst *Config, src File) {
	if src.Node.DataPath != "" {
		dst.DataPath = src.Node.DataPath
	}
	if src.Node.HTTPAddr != "" {
		dst.HTTPAddr = src.Node.HTTPAddr
	}
	if src.Node.KeyPath != "" {
		dst.KeyPath = src.Node.KeyPath
	}
	if src.Node.LogLevel != "" {
		dst.LogLevel = src.Node.LogLevel
	}
	if src.Ledger.MaxAmount != 0 {
		dst.MaxAmount = src.Ledger.MaxAmount
	}
	if src.Ledger.DepositPerByte != 0 {
		dst.DepositPerByte = src.Ledger.DepositPerByte
	}
	if src.API.RateLimit != nil {
		dst.RateLimit = *src.API.RateLimit
	}
	if src.API.RateBurst != 0 {
		dst.RateBurst = src.API.RateBurst
	}
	if src.API.ReplayWindow != 0 {
		dst.ReplayWindow = src.API.ReplayWindow
	}
	if src.Issuer.URL != "" {
		dst.IssuerURL = src.Issuer.URL
	}
	if src.Issuer.Timeout != 0 {
		dst.IssuerTimeout = src.Issuer.Timeout
	}
	if src.Genesis.NodeBalance != 0 {
		dst.Genesis.NodeBalance = src.Genesis.NodeBalance
	}
	if src.Genesis.Airdrops != nil {
		dst.Genesis.Airdrops = src.Genesis.Airdrops
	}
	if src.Genesis.Mint != nil {
		dst.Genesis.Mint = src.Genesis.Mint
	}
}

// ApplyEnv applies BONDR_* overrides found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("DATA_PATH"); ok {
		cfg.DataPath = v
	}
	if v, ok := get("HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := get("KEY_PATH"); ok {
		cfg.KeyPath = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("ISSUER_URL"); ok {
		cfg.IssuerURL = v
	}

	if v, ok := get("MAX_AMOUNT"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_AMOUNT:\n%w", envPrefix, err)
		}
		cfg.MaxAmount = n
	}
	if v, ok := get("DEPOSIT_PER_BYTE"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sDEPOSIT_PER_BYTE:\n%w", envPrefix, err)
		}
		cfg.DepositPerByte = n
	}
	if v, ok := get("RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT:\n%w", envPrefix, err)
		}
		cfg.RateLimit = f
	}
	if v, ok := get("REPLAY_WINDOW"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREPLAY_WINDOW:\n%w", envPrefix, err)
		}
		cfg.ReplayWindow = d
	}

	return nil
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("data path is required")
	}
	if c.MaxAmount == 0 {
		return fmt.Errorf("max amount must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1")
	}
	if c.ReplayWindow <= 0 {
		return fmt.Errorf("replay window must be positive")
	}

	if c.Genesis.Mint != nil && c.Genesis.NodeBalance == 0 {
		return fmt.Errorf("genesis mint requires a node balance to pay deposits")
	}

	for i, a := range c.Genesis.Airdrops {
		if a.Owner == "" || a.Amount == 0 {
			return fmt.Errorf("genesis airdrop %d: owner and amount are required", i)
		}
	}

	return nil
}
