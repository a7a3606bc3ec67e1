package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"os"

	"Bondr/internal/config"
)

// options is the daemon configuration plus one-shot startup actions.
type options struct {
	cfg         config.Config
	restorePath string // restorePath is a snapshot imported before serving
	exportPath  string // exportPath receives a snapshot, then the process exits
	syncWrites  bool   // syncWrites makes every batch durable before returning
}

// parseFlags loads the config file and environment, then applies explicitly set flags.
func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("bondrd", flag.ContinueOnError)

	var (
		configPath = fs.String("config", "", "YAML config file")
		dataPath   = fs.String("data", "", "Data directory path")
		httpAddr   = fs.String("http", "", "HTTP API address")
		keyPath    = fs.String("key", "", "Ed25519 private key path (generates new if missing)")
		logLevel   = fs.String("log", "", "Log level: debug, info, warn, error")
		issuerURL  = fs.String("issuer", "", "Credential issuer URL (local issuer when empty)")
		depositPB  = fs.Uint64("deposit-per-byte", 0, "Native deposit per reserved record byte")
		rateLimit  = fs.Float64("rate", 0, "Requests per second per signer (0 disables)")
	)

	opts := &options{}
	fs.StringVar(&opts.restorePath, "restore", "", "Snapshot file to import at startup")
	fs.StringVar(&opts.exportPath, "export", "", "Write a snapshot of the store to this file and exit")
	fs.BoolVar(&opts.syncWrites, "sync", false, "Sync every write to disk")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config:\n%w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DataPath = *dataPath
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "key":
			cfg.KeyPath = *keyPath
		case "log":
			cfg.LogLevel = *logLevel
		case "issuer":
			cfg.IssuerURL = *issuerURL
		case "deposit-per-byte":
			cfg.DepositPerByte = *depositPB
		case "rate":
			cfg.RateLimit = *rateLimit
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%w", err)
	}

	opts.cfg = cfg

	return opts, nil
}

// loadOrGenerateKey loads the private key from file or generates a new one.
func loadOrGenerateKey(keyPath string) (ed25519.PrivateKey, error) {
	if keyPath == "" {
		return generateNewKey()
	}

	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateAndSaveKey(keyPath)
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(data), nil
}

// generateNewKey creates a new Ed25519 private key.
func generateNewKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}

// generateAndSaveKey creates a new key and saves it to the given path.
func generateAndSaveKey(path string) (ed25519.PrivateKey, error) {
	priv, err := generateNewKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return priv, nil
}
