package ledger

import (
	"errors"
	"testing"

	"Bondr/internal/address"
	"Bondr/internal/types"
)

func TestRemitValidation(t *testing.T) {
	l, _ := newTestLedger(t)

	tests := []struct {
		name string
		in   RemitInput
		want error
	}{
		{"zero amount", RemitInput{Receiver: recipientKey, Seed: 1}, ErrAmountZero},
		{"self", RemitInput{Receiver: payerKey, Amount: 1, Seed: 1}, ErrSelfTransfer},
		{"seed zero", RemitInput{Receiver: recipientKey, Amount: 1, Seed: 0}, ErrInvalidReferenceSeed},
		{"seed above range", RemitInput{Receiver: recipientKey, Amount: 1, Seed: 101}, ErrInvalidReferenceSeed},
		{"too large", RemitInput{Receiver: recipientKey, Amount: DefaultMaxAmount + 1, Seed: 1}, ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Remit(payerKey, tt.in)
			expectErr(t, err, tt.want)
		})
	}
}

func TestRemitAndSettle(t *testing.T) {
	l, events := newTestLedger(t)

	r, err := l.Remit(payerKey, RemitInput{Receiver: recipientKey, Amount: 700, Seed: 100})
	if err != nil {
		t.Fatalf("remit: %v", err)
	}

	want, _ := address.Remittance(payerKey, recipientKey, 100)
	if r.Address != want {
		t.Fatal("remittance not at its derived address")
	}

	_, err = l.Remit(payerKey, RemitInput{Receiver: recipientKey, Amount: 700, Seed: 100})
	expectErr(t, err, ErrAlreadyExists)

	stats, err := l.RemitStats(payerKey)
	if err != nil || stats.Count != 1 || stats.Total != 700 {
		t.Fatalf("sender remittance stats not updated: %+v, %v", stats, err)
	}

	senderBefore := balanceOf(t, l, payerKey)
	receiverBefore := balanceOf(t, l, recipientKey)

	// Only the sender can settle: anyone else derives a different address
	err = l.SettleRemittance(recipientKey, SettleRemittanceInput{Receiver: recipientKey, Seed: 100})
	expectErr(t, err, ErrNotFound)

	if err := l.SettleRemittance(payerKey, SettleRemittanceInput{Receiver: recipientKey, Seed: 100}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	wantSender := senderBefore - 700 + deposit(types.RecordKindRemittance)
	if got := balanceOf(t, l, payerKey); got != wantSender {
		t.Errorf("sender balance = %d, want %d", got, wantSender)
	}
	if got := balanceOf(t, l, recipientKey); got != receiverBefore+700 {
		t.Errorf("receiver balance = %d, want %d", got, receiverBefore+700)
	}

	if _, err := l.Remittance(r.Address); !errors.Is(err, ErrNotFound) {
		t.Errorf("remittance not closed: %v", err)
	}

	if events.count(EventRemittanceSettled) != 1 {
		t.Error("expected one settle event")
	}
}

func TestSettleInsufficientBalance(t *testing.T) {
	l, _ := newTestLedger(t)

	r, err := l.Remit(payerKey, RemitInput{Receiver: recipientKey, Amount: 5_000_000, Seed: 1})
	if err != nil {
		t.Fatalf("remit: %v", err)
	}

	err = l.SettleRemittance(payerKey, SettleRemittanceInput{Receiver: recipientKey, Seed: 1})
	expectErr(t, err, ErrInsufficientBalance)

	if _, err := l.Remittance(r.Address); err != nil {
		t.Errorf("failed settlement closed the remittance: %v", err)
	}
}

func TestRemitMilestoneAtThree(t *testing.T) {
	l, events := newTestLedger(t)

	for seed := uint64(1); seed <= 4; seed++ {
		if _, err := l.Remit(payerKey, RemitInput{Receiver: recipientKey, Amount: 10, Seed: seed}); err != nil {
			t.Fatalf("remit %d: %v", seed, err)
		}
	}

	var got []Event
	for _, ev := range events.events {
		if ev.Kind == EventMilestoneReached {
			got = append(got, ev)
		}
	}

	if len(got) != 1 || got[0].Milestone != MilestoneNovice || got[0].Count != 3 || got[0].Actor != payerKey {
		t.Fatalf("unexpected milestone events: %+v", got)
	}
}
