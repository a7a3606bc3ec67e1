package integration

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"Bondr/client"
	"Bondr/internal/api"
	"Bondr/internal/credential"
	"Bondr/internal/ledger"
	"Bondr/internal/metrics"
	"Bondr/internal/storage"
	"Bondr/internal/tx"
)

// fundAmount is the native balance every test wallet starts with.
const fundAmount = 10_000_000

// Node is an in-process node: a Pebble-backed ledger behind the HTTP API.
type Node struct {
	t       *testing.T
	dir     string
	db      *storage.Storage
	ledger  *ledger.Ledger
	issuer  *credential.Local
	metrics *metrics.Metrics
	server  *api.Server
	http    *httptest.Server
	Client  *client.Client
}

// startNode opens (or reopens) the store in dir and serves it.
func startNode(t *testing.T, dir string) *Node {
	t.Helper()

	db, err := storage.Open(filepath.Join(dir, "db"), storage.Options{SyncWrites: true})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}

	n := &Node{t: t, dir: dir, db: db, issuer: credential.NewLocal(), metrics: metrics.New()}

	n.ledger = ledger.New(db,
		ledger.WithIssuer(n.issuer),
		ledger.WithObserver(n.metrics),
		ledger.WithSink(n.metrics),
	)

	n.server = api.New(":0", n.ledger, api.Options{
		Dedup:      tx.NewDedup(time.Minute),
		Rejections: n.metrics,
		Metrics:    n.metrics.Handler(),
	})
	n.http = httptest.NewServer(n.server.Handler())
	n.Client = client.NewClient(n.http.URL)

	t.Cleanup(n.Stop)

	return n
}

// Stop shuts the node down. Safe to call twice.
func (n *Node) Stop() {
	if n.http == nil {
		return
	}

	n.http.Close()
	n.server.Stop()
	n.db.Close()
	n.http = nil
}

// wallet returns a funded wallet.
func (n *Node) wallet() *client.Wallet {
	n.t.Helper()

	w := client.NewWallet()
	if err := n.ledger.Airdrop(w.Key(), fundAmount); err != nil {
		n.t.Fatalf("airdrop: %v", err)
	}
	return w
}

// wallets returns k funded wallets.
func (n *Node) wallets(k int) []*client.Wallet {
	out := make([]*client.Wallet, k)
	for i := range out {
		out[i] = n.wallet()
	}
	return out
}

// must fails the test on err.
func must(t *testing.T, what string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}
