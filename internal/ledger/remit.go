package ledger

import (
	"Bondr/internal/address"
	"Bondr/internal/types"
)

// Reference seeds of a remittance lie in [MinReferenceSeed, MaxReferenceSeed].
const (
	MinReferenceSeed = 1
	MaxReferenceSeed = 100
)

// RemitInput is the input of Remit.
type RemitInput struct {
	Receiver   address.Key      `json:"receiver"`
	Amount     uint64           `json:"amount"`
	Seed       uint64           `json:"seed"`
	Remittance *address.Address `json:"remittance,omitempty"`
}

// Remit records a single-phase transfer from sender to receiver and counts it
// toward the sender's remittance activity. Funds move at settlement.
func (l *Ledger) Remit(sender address.Key, in RemitInput) (*Remittance, error) {
	var r *Remittance

	err := l.apply(OpRemit, func(t *tx) error {
		if err := l.checkAmount(in.Amount); err != nil {
			return err
		}
		if sender == in.Receiver {
			return ErrSelfTransfer
		}
		if in.Seed < MinReferenceSeed || in.Seed > MaxReferenceSeed {
			return withDetail(ErrInvalidReferenceSeed, "seed %d outside %d..%d", in.Seed, MinReferenceSeed, MaxReferenceSeed)
		}

		addr, _ := address.Remittance(sender, in.Receiver, in.Seed)
		if err := checkPresented(in.Remittance, addr); err != nil {
			return err
		}
		if err := t.claimAddress(addr); err != nil {
			return err
		}

		deposit, err := t.chargeDeposit(sender, types.RecordKindRemittance)
		if err != nil {
			return err
		}

		r = &Remittance{
			Address:  addr,
			Sender:   sender,
			Receiver: in.Receiver,
			Amount:   in.Amount,
			Seed:     in.Seed,
			Deposit:  deposit,
		}
		t.save(r)

		if err := t.recordActivity(remitActivity, sender, in.Amount); err != nil {
			return err
		}

		t.emit(Event{Kind: EventRemittanceCreated, Address: addr, Actor: sender, Amount: in.Amount})

		return nil
	})

	return r, err
}

// SettleRemittanceInput is the input of SettleRemittance.
type SettleRemittanceInput struct {
	Receiver address.Key `json:"receiver"`
	Seed     uint64      `json:"seed"`
}

// SettleRemittance pays a remittance from the sender's native balance and closes it.
func (l *Ledger) SettleRemittance(sender address.Key, in SettleRemittanceInput) error {
	return l.apply(OpSettleRemittance, func(t *tx) error {
		addr, _ := address.Remittance(sender, in.Receiver, in.Seed)

		r, err := t.remittance(addr)
		if err != nil {
			return err
		}
		if r.Sender != sender {
			return ErrUnauthorized
		}

		if err := t.debit(sender, r.Amount); err != nil {
			return err
		}
		if err := t.credit(r.Receiver, r.Amount); err != nil {
			return err
		}

		t.remove(r)

		if err := t.credit(sender, r.Deposit); err != nil {
			return err
		}

		t.emit(Event{Kind: EventRemittanceSettled, Address: addr, Actor: sender, Amount: r.Amount})

		return nil
	})
}
