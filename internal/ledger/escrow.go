package ledger

import (
	"Bondr/internal/address"
	"Bondr/internal/types"
)

// CreateEscrowInput is the input of CreateEscrow.
// Escrow and Vault, when set, must equal the derived addresses.
// TokenAccount is the payer's source account and is required for token escrows only.
type CreateEscrowInput struct {
	Recipient    address.Key      `json:"recipient"`
	Amount       uint64           `json:"amount"`
	Nonce        uint64           `json:"nonce"`
	Asset        Asset            `json:"asset"`
	Governed     bool             `json:"governed"`
	Group        *address.Address `json:"group,omitempty"`
	Escrow       *address.Address `json:"escrow,omitempty"`
	Vault        *address.Address `json:"vault,omitempty"`
	TokenAccount *address.Address `json:"token_account,omitempty"`
}

// CreateEscrow moves amount from payer into a new vault and records the escrow.
func (l *Ledger) CreateEscrow(payer address.Key, in CreateEscrowInput) (*Escrow, error) {
	var e *Escrow

	err := l.apply(OpCreateEscrow, func(t *tx) error {
		if err := l.checkAmount(in.Amount); err != nil {
			return err
		}
		if payer == in.Recipient {
			return ErrSelfTransfer
		}
		if err := in.Asset.validate(); err != nil {
			return err
		}
		if in.Governed != (in.Group != nil) {
			return withDetail(ErrInvalidGovernance, "governed=%t with group=%t", in.Governed, in.Group != nil)
		}

		escrowAddr, proof := address.Escrow(payer, in.Recipient, in.Nonce)
		vaultAddr, vaultProof := address.Vault(payer, in.Recipient, in.Nonce)

		if err := checkPresented(in.Escrow, escrowAddr); err != nil {
			return err
		}
		if err := checkPresented(in.Vault, vaultAddr); err != nil {
			return err
		}
		if err := t.claimAddress(escrowAddr); err != nil {
			return err
		}
		if err := t.claimAddress(vaultAddr); err != nil {
			return err
		}

		if in.Governed {
			if err := t.lockGroup(payer, *in.Group, escrowAddr); err != nil {
				return err
			}
		}

		if err := t.fundVault(payer, in); err != nil {
			return err
		}

		escrowDeposit, err := t.chargeDeposit(payer, types.RecordKindEscrow)
		if err != nil {
			return err
		}
		vaultDeposit, err := t.chargeDeposit(payer, types.RecordKindVault)
		if err != nil {
			return err
		}

		if _, err := t.ensureStats(escrowActivity, payer, payer); err != nil {
			return err
		}

		e = &Escrow{
			Address:   escrowAddr,
			Payer:     payer,
			Recipient: in.Recipient,
			Amount:    in.Amount,
			Asset:     in.Asset,
			Group:     in.Group,
			Nonce:     in.Nonce,
			Vault:     vaultAddr,
			Proof:     proof,
			Funder:    payer,
			Deposit:   escrowDeposit,
		}
		t.save(e)

		t.save(&Vault{
			Address: vaultAddr,
			Escrow:  escrowAddr,
			Asset:   in.Asset,
			Balance: in.Amount,
			Proof:   vaultProof,
			Deposit: vaultDeposit,
		})

		t.emit(Event{Kind: EventEscrowCreated, Address: escrowAddr, Actor: payer, Amount: in.Amount})

		return nil
	})

	return e, err
}

// fundVault debits the escrowed amount from the payer's native balance or token account.
func (t *tx) fundVault(payer address.Key, in CreateEscrowInput) error {
	if !in.Asset.IsToken() {
		if in.TokenAccount != nil {
			return ErrUnexpectedTokens
		}
		return t.debit(payer, in.Amount)
	}

	want, _ := address.TokenAccount(payer, in.Asset.Mint)
	if in.TokenAccount != nil && *in.TokenAccount != want {
		return withDetail(ErrTokenAccount, "source account is not the payer's account for the mint")
	}

	src, err := t.checkTokenAccount(in.TokenAccount, payer, in.Asset)
	if err != nil {
		return err
	}

	return t.debitToken(src, in.Amount)
}

// ReleaseInput is the input of Release.
type ReleaseInput struct {
	Escrow address.Address `json:"escrow"`
}

// Release marks an ungoverned escrow claimable. Only its payer may call it, once.
func (l *Ledger) Release(payer address.Key, in ReleaseInput) error {
	return l.apply(OpRelease, func(t *tx) error {
		e, err := t.verifiedEscrow(in.Escrow)
		if err != nil {
			return err
		}

		if e.Governed() {
			return ErrGovernedRelease
		}
		if e.Payer != payer {
			return ErrUnauthorized
		}
		if e.Released {
			return ErrAlreadyReleased
		}

		e.Released = true
		t.save(e)

		t.emit(Event{Kind: EventEscrowReleased, Address: e.Address, Actor: payer, Amount: e.Amount})

		return nil
	})
}

// verifiedEscrow loads an escrow and checks its address against its own seeds.
func (t *tx) verifiedEscrow(addr address.Address) (*Escrow, error) {
	e, err := t.escrow(addr)
	if err != nil {
		return nil, err
	}

	if !address.Verify(address.TagEscrow, []address.Key{e.Payer, e.Recipient}, e.Nonce, addr, e.Proof) {
		return nil, withDetail(ErrAddressMismatch, "escrow %s fails its derivation proof", addr.Short())
	}

	return e, nil
}

// ClaimInput is the input of Claim.
// TokenAccount is the recipient's receiving account and is required for token escrows only.
type ClaimInput struct {
	Escrow       address.Address  `json:"escrow"`
	Vault        *address.Address `json:"vault,omitempty"`
	TokenAccount *address.Address `json:"token_account,omitempty"`
}

// Claim pays out a released escrow to its recipient and closes the escrow and its vault.
// Deposits go back to the funder. The recipient's stats record the completion,
// and a governed escrow's group returns to idle. The badge is left to UpdateBadge.
func (l *Ledger) Claim(recipient address.Key, in ClaimInput) error {
	return l.apply(OpClaim, func(t *tx) error {
		e, err := t.verifiedEscrow(in.Escrow)
		if err != nil {
			return err
		}

		if !e.Released {
			return ErrNotReleased
		}
		if e.Recipient != recipient {
			return ErrUnauthorized
		}

		if err := checkPresented(in.Vault, e.Vault); err != nil {
			return err
		}

		v, err := t.vault(e.Vault)
		if err != nil {
			return err
		}
		if v.Escrow != e.Address {
			return withDetail(ErrCorruptRecord, "vault %s is not paired with escrow %s", v.Address.Short(), e.Address.Short())
		}

		if err := t.payOut(e, v, in.TokenAccount); err != nil {
			return err
		}

		t.remove(v)
		t.remove(e)

		refund, err := add(e.Deposit, v.Deposit)
		if err != nil {
			return err
		}
		if err := t.credit(e.Funder, refund); err != nil {
			return err
		}

		if err := t.recordActivity(escrowActivity, recipient, e.Amount); err != nil {
			return err
		}

		if e.Governed() {
			if err := t.resetGroup(*e.Group); err != nil {
				return err
			}
		}

		t.emit(Event{Kind: EventEscrowClaimed, Address: e.Address, Actor: recipient, Amount: v.Balance})

		return nil
	})
}

// payOut moves the whole vault balance to the recipient along the asset's path.
func (t *tx) payOut(e *Escrow, v *Vault, tokenAccount *address.Address) error {
	if !e.Asset.IsToken() {
		if tokenAccount != nil {
			return ErrUnexpectedTokens
		}
		return t.credit(e.Recipient, v.Balance)
	}

	dst, err := t.checkTokenAccount(tokenAccount, e.Recipient, e.Asset)
	if err != nil {
		return err
	}

	return t.creditToken(dst, v.Balance)
}
