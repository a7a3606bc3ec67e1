package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Bondr/internal/address"
	"Bondr/internal/ledger"
)

// defaultTTL is how long a signed envelope stays valid.
// It must stay below the node's replay window.
const defaultTTL = 60 * time.Second

// Client connects to a Bondr node via HTTP.
type Client struct {
	baseURL string        // baseURL is the node URL (e.g. "http://127.0.0.1:8080")
	http    *http.Client  // http performs requests
	ttl     time.Duration // ttl is the validity of signed envelopes
}

// NewClient creates a client for nodeAddr.
// A bare host:port is treated as plain HTTP.
func NewClient(nodeAddr string) *Client {
	if !strings.Contains(nodeAddr, "://") {
		nodeAddr = "http://" + nodeAddr
	}

	return &Client{
		baseURL: strings.TrimRight(nodeAddr, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		ttl:     defaultTTL,
	}
}

// SetTTL changes the validity of envelopes signed from now on.
func (c *Client) SetTTL(ttl time.Duration) {
	c.ttl = ttl
}

// Health checks that the node answers.
func (c *Client) Health() error {
	var resp struct {
		Status string `json:"status"`
	}

	if err := c.httpGet("/health", &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("node status %q", resp.Status)
	}

	return nil
}

// Submitted is the node's answer to an accepted operation.
type Submitted struct {
	Op     string          `json:"op"`
	Hash   string          `json:"hash"`
	Result json.RawMessage `json:"result"`
}

// Submit signs op with w and posts it. The result, if any, is decoded into out.
func (c *Client) Submit(w *Wallet, op string, args any, out any) (*Submitted, error) {
	env, err := w.Sign(op, args, time.Now().Add(c.ttl))
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope:\n%w", err)
	}

	var sub Submitted
	if err := c.httpPost("/op", body, &sub); err != nil {
		return nil, fmt.Errorf("%s:\n%w", op, err)
	}

	if out != nil && len(sub.Result) > 0 {
		if err := json.Unmarshal(sub.Result, out); err != nil {
			return &sub, fmt.Errorf("decode %s result:\n%w", op, err)
		}
	}

	return &sub, nil
}

// Escrow fetches the escrow at addr.
func (c *Client) Escrow(addr address.Address) (*ledger.Escrow, error) {
	return fetch[ledger.Escrow](c, "/escrow/"+addr.String())
}

// Vault fetches the vault at addr.
func (c *Client) Vault(addr address.Address) (*ledger.Vault, error) {
	return fetch[ledger.Vault](c, "/vault/"+addr.String())
}

// Group fetches the approval group at addr.
func (c *Client) Group(addr address.Address) (*ledger.Group, error) {
	return fetch[ledger.Group](c, "/group/"+addr.String())
}

// Remittance fetches the remittance at addr.
func (c *Client) Remittance(addr address.Address) (*ledger.Remittance, error) {
	return fetch[ledger.Remittance](c, "/remittance/"+addr.String())
}

// Mint fetches the mint at addr.
func (c *Client) Mint(addr address.Address) (*ledger.Mint, error) {
	return fetch[ledger.Mint](c, "/mint/"+addr.String())
}

// TokenAccount fetches the token account at addr.
func (c *Client) TokenAccount(addr address.Address) (*ledger.TokenAccount, error) {
	return fetch[ledger.TokenAccount](c, "/token-account/"+addr.String())
}

// Stats fetches the claimed-escrow activity of owner.
func (c *Client) Stats(owner address.Key) (*ledger.Stats, error) {
	return fetch[ledger.Stats](c, "/stats/"+owner.String())
}

// RemitStats fetches the remittance activity of sender.
func (c *Client) RemitStats(sender address.Key) (*ledger.Stats, error) {
	return fetch[ledger.Stats](c, "/remit-stats/"+sender.String())
}

// Badge fetches the reputation badge of owner.
func (c *Client) Badge(owner address.Key) (*ledger.Badge, error) {
	return fetch[ledger.Badge](c, "/badge/"+owner.String())
}

// Balance fetches the native balance of owner.
func (c *Client) Balance(owner address.Key) (uint64, error) {
	var resp struct {
		Balance uint64 `json:"balance"`
	}

	if err := c.httpGet("/balance/"+owner.String(), &resp); err != nil {
		return 0, err
	}

	return resp.Balance, nil
}

// fetch GETs path into a fresh T.
func fetch[T any](c *Client, path string) (*T, error) {
	var v T
	if err := c.httpGet(path, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
