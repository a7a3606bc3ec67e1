package ledger

import (
	"context"
	"sync"
	"time"

	"Bondr/internal/address"
	"Bondr/internal/logger"
	"Bondr/internal/types"
)

const (
	// DefaultMaxAmount is the largest amount a single escrow or remittance may carry.
	DefaultMaxAmount uint64 = 1_000_000_000_000

	// DefaultDepositPerByte is the native deposit charged per reserved record byte.
	DefaultDepositPerByte uint64 = 10
)

// Operation names, shared by the transport, metrics and logs.
const (
	OpCreateEscrow     = "create-escrow"
	OpRelease          = "release"
	OpApprove          = "approve"
	OpClaim            = "claim"
	OpLinkGroup        = "link-group"
	OpInitBadge        = "init-badge"
	OpUpdateBadge      = "update-badge"
	OpIssueCredential  = "issue-credential"
	OpRemit            = "remit"
	OpSettleRemittance = "settle-remittance"
	OpCreateMint       = "create-mint"
	OpMintTo           = "mint-to"
	OpOpenTokenAccount = "open-token-account"
	OpAirdrop          = "airdrop"
	OpRestore          = "restore"
)

// Config holds the ledger's economic parameters.
type Config struct {
	MaxAmount      uint64 // MaxAmount caps escrow and remittance amounts
	DepositPerByte uint64 // DepositPerByte prices reserved record space
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		MaxAmount:      DefaultMaxAmount,
		DepositPerByte: DefaultDepositPerByte,
	}
}

// deposit returns the storage deposit of one record of kind.
func (c Config) deposit(kind types.RecordKind) uint64 {
	return recordSpace[kind] * c.DepositPerByte
}

// Issuer issues a tier credential for a recipient and returns its identifier.
type Issuer interface {
	Issue(ctx context.Context, recipient address.Key, tier string) (string, error)
}

// Observer receives the outcome of every operation.
type Observer interface {
	ObserveOp(op string, err error, elapsed time.Duration)
}

// Ledger applies operations one at a time, each as a single atomic batch.
type Ledger struct {
	mu       sync.Mutex
	backend  Backend
	cfg      Config
	issuer   Issuer
	observer Observer
	sinks    []Sink
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithConfig overrides the economic parameters.
func WithConfig(cfg Config) Option {
	return func(l *Ledger) { l.cfg = cfg }
}

// WithIssuer sets the credential issuer.
func WithIssuer(issuer Issuer) Option {
	return func(l *Ledger) { l.issuer = issuer }
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

// WithSink adds an event sink. Sinks receive events after commit, in order.
func WithSink(s Sink) Option {
	return func(l *Ledger) { l.sinks = append(l.sinks, s) }
}

// New creates a ledger over backend.
func New(backend Backend, opts ...Option) *Ledger {
	l := &Ledger{
		backend: backend,
		cfg:     DefaultConfig(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Config returns the ledger's parameters.
func (l *Ledger) Config() Config {
	return l.cfg
}

// apply runs fn in a fresh overlay and commits its writes as one batch.
// On error nothing is written and no event is published.
func (l *Ledger) apply(op string, fn func(t *tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	t := newTx(l.backend, l.cfg)

	err := fn(t)
	if err == nil {
		if cerr := l.backend.Apply(t.mutations()); cerr != nil {
			err = withCause(ErrStore, cerr)
		}
	}

	if l.observer != nil {
		l.observer.ObserveOp(op, err, time.Since(start))
	}

	if err != nil {
		logger.Debug("op rejected", "op", op, "code", Code(err), "error", err)
		return err
	}

	logger.Debug("op applied", "op", op, "writes", len(t.order), logger.Timed(start))

	for _, ev := range t.events {
		for _, s := range l.sinks {
			s.Publish(ev)
		}
	}

	return nil
}

// view runs a read-only fn against committed state.
func (l *Ledger) view(fn func(t *tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return fn(newTx(l.backend, l.cfg))
}

// Escrow returns the escrow at addr.
func (l *Ledger) Escrow(addr address.Address) (e *Escrow, err error) {
	err = l.view(func(t *tx) error {
		e, err = t.escrow(addr)
		return err
	})
	return e, err
}

// Vault returns the vault at addr.
func (l *Ledger) Vault(addr address.Address) (v *Vault, err error) {
	err = l.view(func(t *tx) error {
		v, err = t.vault(addr)
		return err
	})
	return v, err
}

// Group returns the approval group at addr.
func (l *Ledger) Group(addr address.Address) (g *Group, err error) {
	err = l.view(func(t *tx) error {
		g, err = t.group(addr)
		return err
	})
	return g, err
}

// Stats returns the claimed-escrow activity of owner.
func (l *Ledger) Stats(owner address.Key) (s *Stats, err error) {
	err = l.view(func(t *tx) error {
		s, err = must(t.stats(escrowActivity, owner))
		return err
	})
	return s, err
}

// RemitStats returns the remittance activity of sender.
func (l *Ledger) RemitStats(sender address.Key) (s *Stats, err error) {
	err = l.view(func(t *tx) error {
		s, err = must(t.stats(remitActivity, sender))
		return err
	})
	return s, err
}

// Badge returns the reputation badge of owner.
func (l *Ledger) Badge(owner address.Key) (b *Badge, err error) {
	err = l.view(func(t *tx) error {
		b, err = must(t.badge(owner))
		return err
	})
	return b, err
}

// Remittance returns the remittance at addr.
func (l *Ledger) Remittance(addr address.Address) (r *Remittance, err error) {
	err = l.view(func(t *tx) error {
		r, err = t.remittance(addr)
		return err
	})
	return r, err
}

// Mint returns the mint at addr.
func (l *Ledger) Mint(addr address.Address) (m *Mint, err error) {
	err = l.view(func(t *tx) error {
		m, err = t.mint(addr)
		return err
	})
	return m, err
}

// TokenAccount returns the token account at addr.
func (l *Ledger) TokenAccount(addr address.Address) (a *TokenAccount, err error) {
	err = l.view(func(t *tx) error {
		a, err = must(t.tokenAccount(addr))
		return err
	})
	return a, err
}

// Balance returns the native balance of owner. Unknown owners hold zero.
func (l *Ledger) Balance(owner address.Key) (balance uint64, err error) {
	err = l.view(func(t *tx) error {
		acct, err := t.native(owner)
		if err != nil {
			return err
		}
		balance = acct.balance
		return nil
	})
	return balance, err
}

// checkAmount applies the amount rules shared by escrows and remittances.
func (l *Ledger) checkAmount(amount uint64) error {
	if amount == 0 {
		return ErrAmountZero
	}
	if amount > l.cfg.MaxAmount {
		return withDetail(ErrAmountTooLarge, "%d > %d", amount, l.cfg.MaxAmount)
	}
	return nil
}

// checkPresented rejects a presented address that differs from the derived one.
// A nil presented address is accepted.
func checkPresented(presented *address.Address, derived address.Address) error {
	if presented != nil && *presented != derived {
		return withDetail(ErrAddressMismatch, "got %s, derived %s", presented.Short(), derived.Short())
	}
	return nil
}
