package main

import (
	"crypto/ed25519"
	"fmt"
	"os"

	"Bondr/internal/address"
	"Bondr/internal/logger"
)

func main() {
	logger.Init("info")

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	logger.SetLevel(opts.cfg.LogLevel)

	priv, err := loadOrGenerateKey(opts.cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load key:\n%w", err)
	}

	node, err := NewNode(opts, priv)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	if opts.exportPath != "" {
		defer node.Close()
		return node.Export(opts.exportPath)
	}

	printStartupInfo(opts, priv)

	return node.Run()
}

// printStartupInfo displays node configuration at startup.
func printStartupInfo(opts *options, priv ed25519.PrivateKey) {
	var key address.Key
	copy(key[:], priv.Public().(ed25519.PublicKey))

	cfg := opts.cfg
	issuer := "local"
	if cfg.IssuerURL != "" {
		issuer = cfg.IssuerURL
	}

	logger.Info("starting bondr node",
		"key", key.String(),
		"http", cfg.HTTPAddr,
		"data", cfg.DataPath,
		"issuer", issuer,
		"deposit_per_byte", cfg.DepositPerByte,
		"rate_limit", cfg.RateLimit,
	)
}
