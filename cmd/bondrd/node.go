package main

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Bondr/internal/address"
	"Bondr/internal/api"
	"Bondr/internal/credential"
	"Bondr/internal/genesis"
	"Bondr/internal/ledger"
	"Bondr/internal/logger"
	"Bondr/internal/metrics"
	"Bondr/internal/ratelimit"
	"Bondr/internal/storage"
	"Bondr/internal/tx"
)

// limiterIdleTTL is how long an idle signer keeps its rate limit state.
const limiterIdleTTL = 10 * time.Minute

// Node wires storage, ledger and API together.
type Node struct {
	opts    *options
	key     address.Key
	storage *storage.Storage
	ledger  *ledger.Ledger
	metrics *metrics.Metrics
	api     *api.Server
}

// NewNode opens the store, seeds or restores it, and builds the API.
func NewNode(opts *options, priv ed25519.PrivateKey) (*Node, error) {
	n := &Node{opts: opts, metrics: metrics.New()}
	copy(n.key[:], priv.Public().(ed25519.PublicKey))

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	n.initLedger()

	if err := n.initState(); err != nil {
		n.Close()
		return nil, err
	}

	n.initAPI()

	return n, nil
}

// initStorage initializes the Pebble storage.
func (n *Node) initStorage() error {
	cfg := n.opts.cfg

	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.Open(filepath.Join(cfg.DataPath, "db"), storage.Options{SyncWrites: n.opts.syncWrites})
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// initLedger builds the ledger with its issuer, metrics and log sink.
func (n *Node) initLedger() {
	cfg := n.opts.cfg

	var issuer ledger.Issuer = credential.NewLocal()
	if cfg.IssuerURL != "" {
		issuer = credential.NewHTTP(cfg.IssuerURL, cfg.IssuerTimeout)
	}

	n.ledger = ledger.New(n.storage,
		ledger.WithConfig(cfg.Ledger()),
		ledger.WithIssuer(issuer),
		ledger.WithObserver(n.metrics),
		ledger.WithSink(n.metrics),
		ledger.WithSink(ledger.LogSink{}),
	)
}

// initState restores a snapshot when asked, otherwise applies genesis to an empty store.
func (n *Node) initState() error {
	if n.opts.restorePath != "" {
		data, err := os.ReadFile(n.opts.restorePath)
		if err != nil {
			return fmt.Errorf("read snapshot:\n%w", err)
		}

		checksum, err := n.ledger.Restore(data)
		if err != nil {
			return fmt.Errorf("restore snapshot:\n%w", err)
		}

		logger.Info("snapshot restored", "path", n.opts.restorePath, "checksum", fmt.Sprintf("%x", checksum[:8]))
		return nil
	}

	if n.opts.exportPath != "" {
		return nil
	}

	if _, err := genesis.Apply(n.ledger, n.key, n.opts.cfg.Genesis); err != nil {
		return fmt.Errorf("apply genesis:\n%w", err)
	}

	return nil
}

// initAPI builds the HTTP server.
func (n *Node) initAPI() {
	cfg := n.opts.cfg

	n.api = api.New(cfg.HTTPAddr, n.ledger, api.Options{
		Dedup:      tx.NewDedup(cfg.ReplayWindow),
		Limiter:    ratelimit.New(cfg.RateLimit, cfg.RateBurst, limiterIdleTTL),
		Rejections: n.metrics,
		Metrics:    n.metrics.Handler(),
	})
}

// Export writes a snapshot of the store to path and prints its checksum.
// Two stores hold the same state exactly when their checksums match.
func (n *Node) Export(path string) error {
	data, checksum, err := n.ledger.Snapshot()
	if err != nil {
		return fmt.Errorf("build snapshot:\n%w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot to %s:\n%w", path, err)
	}

	fmt.Printf("%x\n", checksum)
	logger.Info("snapshot exported", "path", path, "bytes", len(data))

	return nil
}

// Run starts the API and blocks until shutdown signal.
func (n *Node) Run() error {
	if err := n.api.Start(); err != nil {
		n.Close()
		return fmt.Errorf("start api:\n%w", err)
	}

	return n.waitForShutdown()
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.api != nil {
		if err := n.api.Stop(); err != nil {
			logger.Warn("api shutdown", "error", err)
		}
	}

	if n.storage != nil {
		return n.storage.Close()
	}

	return nil
}
