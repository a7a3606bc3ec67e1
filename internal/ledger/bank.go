package ledger

import (
	"Bondr/internal/address"
	"Bondr/internal/types"
)

// debit removes amount from owner's native balance.
func (t *tx) debit(owner address.Key, amount uint64) error {
	if amount == 0 {
		return nil
	}

	acct, err := t.native(owner)
	if err != nil {
		return err
	}

	if acct.balance < amount {
		return withDetail(ErrInsufficientBalance, "%s holds %d, needs %d", owner.Short(), acct.balance, amount)
	}

	acct.balance -= amount
	t.save(acct)

	return nil
}

// credit adds amount to owner's native balance.
func (t *tx) credit(owner address.Key, amount uint64) error {
	if amount == 0 {
		return nil
	}

	acct, err := t.native(owner)
	if err != nil {
		return err
	}

	next, err := add(acct.balance, amount)
	if err != nil {
		return err
	}

	acct.balance = next
	t.save(acct)

	return nil
}

// chargeDeposit debits the storage deposit of one record of kind from payer.
func (t *tx) chargeDeposit(payer address.Key, kind types.RecordKind) (uint64, error) {
	deposit := t.cfg.deposit(kind)
	if err := t.debit(payer, deposit); err != nil {
		return 0, err
	}
	return deposit, nil
}

// add returns a+b, failing instead of wrapping.
func add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, withDetail(ErrBalanceOverflow, "%d + %d wraps", a, b)
	}
	return sum, nil
}

// debitToken removes amount from a token account.
func (t *tx) debitToken(acct *TokenAccount, amount uint64) error {
	if acct.Balance < amount {
		return withDetail(ErrInsufficientBalance, "token account %s holds %d, needs %d", acct.Address.Short(), acct.Balance, amount)
	}

	acct.Balance -= amount
	t.save(acct)

	return nil
}

// creditToken adds amount to a token account.
func (t *tx) creditToken(acct *TokenAccount, amount uint64) error {
	next, err := add(acct.Balance, amount)
	if err != nil {
		return err
	}

	acct.Balance = next
	t.save(acct)

	return nil
}

// checkTokenAccount verifies that addr is an open account of owner for asset.
func (t *tx) checkTokenAccount(addr *address.Address, owner address.Key, asset Asset) (*TokenAccount, error) {
	if addr == nil {
		return nil, ErrMissingTokenAccount
	}

	acct, found, err := t.tokenAccount(*addr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, withDetail(ErrMissingTokenAccount, "%s is not open", addr.Short())
	}

	if acct.Owner != owner {
		return nil, withDetail(ErrTokenAccount, "%s belongs to %s", addr.Short(), acct.Owner.Short())
	}

	if acct.Mint != asset.Mint {
		return nil, withDetail(ErrMintMismatch, "account mint %s, escrow mint %s", acct.Mint.Short(), asset.Mint.Short())
	}

	mint, err := t.mint(asset.Mint)
	if err != nil {
		return nil, err
	}

	if mint.Decimals != asset.Decimals {
		return nil, withDetail(ErrDecimalsMismatch, "mint has %d, asset says %d", mint.Decimals, asset.Decimals)
	}

	return acct, nil
}

// CreateMintInput is the input of CreateMint.
type CreateMintInput struct {
	Nonce    uint64           `json:"nonce"`
	Decimals uint8            `json:"decimals"`
	Mint     *address.Address `json:"mint,omitempty"`
}

// CreateMint creates a token mint controlled by authority.
func (l *Ledger) CreateMint(authority address.Key, in CreateMintInput) (*Mint, error) {
	var m *Mint

	err := l.apply(OpCreateMint, func(t *tx) error {
		if in.Decimals > maxDecimals {
			return withDetail(ErrInvalidDecimals, "%d > %d", in.Decimals, maxDecimals)
		}

		addr, _ := address.Mint(authority, in.Nonce)
		if err := checkPresented(in.Mint, addr); err != nil {
			return err
		}
		if err := t.claimAddress(addr); err != nil {
			return err
		}

		if _, err := t.chargeDeposit(authority, types.RecordKindMint); err != nil {
			return err
		}

		m = &Mint{Address: addr, Authority: authority, Decimals: in.Decimals, Nonce: in.Nonce}
		t.save(m)

		t.emit(Event{Kind: EventMintCreated, Address: addr, Actor: authority})

		return nil
	})

	return m, err
}

// OpenTokenAccountInput is the input of OpenTokenAccount.
type OpenTokenAccountInput struct {
	Mint address.Address `json:"mint"`
}

// OpenTokenAccount opens owner's account for a mint.
func (l *Ledger) OpenTokenAccount(owner address.Key, in OpenTokenAccountInput) (*TokenAccount, error) {
	var acct *TokenAccount

	err := l.apply(OpOpenTokenAccount, func(t *tx) error {
		if _, err := t.mint(in.Mint); err != nil {
			return err
		}

		addr, _ := address.TokenAccount(owner, in.Mint)
		if err := t.claimAddress(addr); err != nil {
			return err
		}

		if _, err := t.chargeDeposit(owner, types.RecordKindTokenAccount); err != nil {
			return err
		}

		acct = &TokenAccount{Address: addr, Owner: owner, Mint: in.Mint}
		t.save(acct)

		return nil
	})

	return acct, err
}

// MintToInput is the input of MintTo.
type MintToInput struct {
	Mint   address.Address `json:"mint"`
	Owner  address.Key     `json:"owner"`
	Amount uint64          `json:"amount"`
}

// MintTo issues new tokens into owner's open account. Only the mint authority may call it.
func (l *Ledger) MintTo(authority address.Key, in MintToInput) error {
	return l.apply(OpMintTo, func(t *tx) error {
		if in.Amount == 0 {
			return ErrAmountZero
		}

		m, err := t.mint(in.Mint)
		if err != nil {
			return err
		}
		if m.Authority != authority {
			return withDetail(ErrUnauthorized, "not the mint authority")
		}

		addr, _ := address.TokenAccount(in.Owner, in.Mint)
		acct, err := t.checkTokenAccount(&addr, in.Owner, Token(in.Mint, m.Decimals))
		if err != nil {
			return err
		}

		supply, err := add(m.Supply, in.Amount)
		if err != nil {
			return err
		}
		m.Supply = supply
		t.save(m)

		if err := t.creditToken(acct, in.Amount); err != nil {
			return err
		}

		t.emit(Event{Kind: EventTokensMinted, Address: in.Mint, Actor: in.Owner, Amount: in.Amount})

		return nil
	})
}

// Airdrop credits native balance to owner. It is the bootstrap faucet and has no signer.
func (l *Ledger) Airdrop(owner address.Key, amount uint64) error {
	return l.apply(OpAirdrop, func(t *tx) error {
		if amount == 0 {
			return ErrAmountZero
		}
		return t.credit(owner, amount)
	})
}
