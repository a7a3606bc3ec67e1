package client

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"Bondr/internal/address"
	"Bondr/internal/ledger"
	"Bondr/internal/tx"
)

// Wallet holds a keypair and signs operations for it.
type Wallet struct {
	privKey ed25519.PrivateKey // privKey is the Ed25519 private key
	key     address.Key        // key is the public key, the caller identity
}

// NewWallet creates a new wallet with a random Ed25519 keypair.
func NewWallet() *Wallet {
	_, priv, _ := ed25519.GenerateKey(rand.Reader)
	return walletFrom(priv)
}

// WalletFromSeed restores a wallet from a 32-byte Ed25519 seed.
func WalletFromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed size: got %d, want %d", len(seed), ed25519.SeedSize)
	}
	return walletFrom(ed25519.NewKeyFromSeed(seed)), nil
}

func walletFrom(priv ed25519.PrivateKey) *Wallet {
	w := &Wallet{privKey: priv}
	copy(w.key[:], priv.Public().(ed25519.PublicKey))
	return w
}

// Key returns the wallet's public key.
func (w *Wallet) Key() address.Key {
	return w.key
}

// Sign builds a signed envelope for op.
func (w *Wallet) Sign(op string, args any, expires time.Time) (*tx.Envelope, error) {
	env, err := tx.Sign(w.privKey, op, args, expires)
	if err != nil {
		return nil, fmt.Errorf("sign %s:\n%w", op, err)
	}
	return env, nil
}

// Addresses derived locally, matching what the node derives.

// EscrowTo returns the escrow and vault addresses for a payment to recipient.
func (w *Wallet) EscrowTo(recipient address.Key, nonce uint64) (escrow, vault address.Address) {
	escrow, _ = address.Escrow(w.key, recipient, nonce)
	vault, _ = address.Vault(w.key, recipient, nonce)
	return escrow, vault
}

// GroupAddress returns the address of the wallet's approval group.
func (w *Wallet) GroupAddress() address.Address {
	addr, _ := address.Multisig(w.key)
	return addr
}

// BadgeAddress returns the address of the wallet's badge.
func (w *Wallet) BadgeAddress() address.Address {
	addr, _ := address.Badge(w.key)
	return addr
}

// RemittanceTo returns the remittance address for receiver and seed.
func (w *Wallet) RemittanceTo(receiver address.Key, seed uint64) address.Address {
	addr, _ := address.Remittance(w.key, receiver, seed)
	return addr
}

// MintAddress returns the address of the wallet's mint with nonce.
func (w *Wallet) MintAddress(nonce uint64) address.Address {
	addr, _ := address.Mint(w.key, nonce)
	return addr
}

// TokenAccountFor returns the wallet's token account address for mint.
func (w *Wallet) TokenAccountFor(mint address.Address) address.Address {
	addr, _ := address.TokenAccount(w.key, mint)
	return addr
}

// Operations. Presented addresses are filled from local derivation, so the
// node cross-checks them against its own.

// CreateEscrow locks funds for recipient.
func (w *Wallet) CreateEscrow(c *Client, in ledger.CreateEscrowInput) (*ledger.Escrow, error) {
	escrow, vault := w.EscrowTo(in.Recipient, in.Nonce)
	if in.Escrow == nil {
		in.Escrow = &escrow
	}
	if in.Vault == nil {
		in.Vault = &vault
	}
	if in.Governed && in.Group == nil {
		group := w.GroupAddress()
		in.Group = &group
	}
	if in.Asset.IsToken() && in.TokenAccount == nil {
		acct := w.TokenAccountFor(in.Asset.Mint)
		in.TokenAccount = &acct
	}

	var out ledger.Escrow
	if _, err := c.Submit(w, ledger.OpCreateEscrow, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Release marks the wallet's escrow claimable.
func (w *Wallet) Release(c *Client, escrow address.Address) error {
	_, err := c.Submit(w, ledger.OpRelease, ledger.ReleaseInput{Escrow: escrow}, nil)
	return err
}

// Claim collects a released escrow. For token escrows the wallet's own
// token account for the mint receives the funds.
func (w *Wallet) Claim(c *Client, escrow address.Address) error {
	in := ledger.ClaimInput{Escrow: escrow}

	e, err := c.Escrow(escrow)
	if err != nil {
		return err
	}
	in.Vault = &e.Vault
	if e.Asset.IsToken() {
		acct := w.TokenAccountFor(e.Asset.Mint)
		in.TokenAccount = &acct
	}

	_, err = c.Submit(w, ledger.OpClaim, in, nil)
	return err
}

// LinkGroup creates the wallet's approval group. The wallet must be listed first.
func (w *Wallet) LinkGroup(c *Client, members []address.Key, threshold uint8) (*ledger.Group, error) {
	group := w.GroupAddress()

	var out ledger.Group
	in := ledger.LinkGroupInput{Members: members, Threshold: threshold, Group: &group}
	if _, err := c.Submit(w, ledger.OpLinkGroup, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve adds the wallet's approval to a group's pending escrow.
func (w *Wallet) Approve(c *Client, group, escrow address.Address) error {
	_, err := c.Submit(w, ledger.OpApprove, ledger.ApproveInput{Group: group, Escrow: escrow}, nil)
	return err
}

// InitBadge creates the wallet's reputation badge.
func (w *Wallet) InitBadge(c *Client) (*ledger.Badge, error) {
	var out ledger.Badge
	if _, err := c.Submit(w, ledger.OpInitBadge, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBadge records a completed job of amount on the wallet's badge.
func (w *Wallet) UpdateBadge(c *Client, amount uint64) (*ledger.Badge, error) {
	badge := w.BadgeAddress()

	var out ledger.Badge
	if _, err := c.Submit(w, ledger.OpUpdateBadge, ledger.UpdateBadgeInput{Amount: amount, Badge: &badge}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IssueCredential requests the credential for the wallet's eligible tier.
func (w *Wallet) IssueCredential(ctx context.Context, c *Client) (ledger.Credential, error) {
	badge := w.BadgeAddress()

	var out ledger.Credential
	if err := ctx.Err(); err != nil {
		return out, err
	}

	_, err := c.Submit(w, ledger.OpIssueCredential, ledger.IssueCredentialInput{Badge: &badge}, &out)
	return out, err
}

// Remit records a reference payment to receiver.
func (w *Wallet) Remit(c *Client, receiver address.Key, amount, seed uint64) (*ledger.Remittance, error) {
	addr := w.RemittanceTo(receiver, seed)

	var out ledger.Remittance
	in := ledger.RemitInput{Receiver: receiver, Amount: amount, Seed: seed, Remittance: &addr}
	if _, err := c.Submit(w, ledger.OpRemit, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SettleRemittance pays out a recorded remittance.
func (w *Wallet) SettleRemittance(c *Client, receiver address.Key, seed uint64) error {
	_, err := c.Submit(w, ledger.OpSettleRemittance, ledger.SettleRemittanceInput{Receiver: receiver, Seed: seed}, nil)
	return err
}

// CreateMint creates a token mint owned by the wallet.
func (w *Wallet) CreateMint(c *Client, nonce uint64, decimals uint8) (*ledger.Mint, error) {
	addr := w.MintAddress(nonce)

	var out ledger.Mint
	if _, err := c.Submit(w, ledger.OpCreateMint, ledger.CreateMintInput{Nonce: nonce, Decimals: decimals, Mint: &addr}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenTokenAccount opens the wallet's account for mint.
func (w *Wallet) OpenTokenAccount(c *Client, mint address.Address) (*ledger.TokenAccount, error) {
	var out ledger.TokenAccount
	if _, err := c.Submit(w, ledger.OpOpenTokenAccount, ledger.OpenTokenAccountInput{Mint: mint}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MintTo mints amount of the wallet's mint to owner's open account.
func (w *Wallet) MintTo(c *Client, mint address.Address, owner address.Key, amount uint64) error {
	_, err := c.Submit(w, ledger.OpMintTo, ledger.MintToInput{Mint: mint, Owner: owner, Amount: amount}, nil)
	return err
}
