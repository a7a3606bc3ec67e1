package ledger

import (
	"errors"
	"strings"
	"testing"

	"Bondr/internal/address"
)

func TestLinkGroupValidation(t *testing.T) {
	tests := []struct {
		name      string
		members   []address.Key
		threshold uint8
		detail    string
	}{
		{"no members", nil, 1, "members"},
		{"too many members", []address.Key{payerKey, member1, member2, member3, member4, outsiderKey}, 1, "members"},
		{"payer not first", []address.Key{member1, payerKey}, 1, "first member"},
		{"payer missing", []address.Key{member1, member2}, 1, "first member"},
		{"duplicate member", []address.Key{payerKey, member1, member1}, 2, "duplicate member"},
		{"duplicate payer", []address.Key{payerKey, payerKey}, 1, "duplicate member"},
		{"zero threshold", []address.Key{payerKey, member1}, 0, "threshold"},
		{"threshold above count", []address.Key{payerKey, member1}, 3, "threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLedger(t)

			_, err := l.LinkGroup(payerKey, LinkGroupInput{Members: tt.members, Threshold: tt.threshold})
			expectErr(t, err, ErrInvalidGovernance)

			if !strings.Contains(err.Error(), tt.detail) {
				t.Errorf("error %q does not mention %q", err, tt.detail)
			}

			addr, _ := address.Multisig(payerKey)
			if _, err := l.Group(addr); !errors.Is(err, ErrNotFound) {
				t.Error("invalid link created a group")
			}
		})
	}
}

func TestLinkGroupOncePerPayer(t *testing.T) {
	l, events := newTestLedger(t)

	g := linkGroup(t, l, 2)

	want, _ := address.Multisig(payerKey)
	if g.Address != want {
		t.Fatal("group not at the payer's derived address")
	}
	if !g.Idle() || len(g.Approvals) != 5 || g.Members[0] != payerKey {
		t.Errorf("unexpected new group: %+v", g)
	}

	_, err := l.LinkGroup(payerKey, LinkGroupInput{Members: []address.Key{payerKey}, Threshold: 1})
	expectErr(t, err, ErrAlreadyExists)

	if events.count(EventGroupLinked) != 1 {
		t.Error("expected one link event")
	}

	// A single-member group is valid for another payer
	if _, err := l.LinkGroup(member1, LinkGroupInput{Members: []address.Key{member1}, Threshold: 1}); err != nil {
		t.Fatalf("single member group: %v", err)
	}
}

func TestThresholdApprovalReleases(t *testing.T) {
	l, events := newTestLedger(t)

	g := linkGroup(t, l, 3)
	e := createGoverned(t, l, g.Address, 1)

	for i, m := range []address.Key{member1, member2} {
		if err := l.Approve(m, ApproveInput{Group: g.Address, Escrow: e.Address}); err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}

		stored, _ := l.Escrow(e.Address)
		if stored.Released {
			t.Fatalf("released after %d approvals", i+1)
		}
	}

	if err := l.Approve(member3, ApproveInput{Group: g.Address, Escrow: e.Address}); err != nil {
		t.Fatalf("third approval: %v", err)
	}

	stored, _ := l.Escrow(e.Address)
	if !stored.Released {
		t.Fatal("escrow not released at threshold")
	}

	// Approvals past the threshold are accepted without further effect
	if err := l.Approve(member4, ApproveInput{Group: g.Address, Escrow: e.Address}); err != nil {
		t.Fatalf("fourth approval: %v", err)
	}

	after, _ := l.Escrow(e.Address)
	if !after.Released || after.Version != stored.Version {
		t.Errorf("extra approval touched the escrow: %+v", after)
	}

	group, _ := l.Group(g.Address)
	if group.ApprovalCount() != 4 {
		t.Errorf("approval count = %d, want 4", group.ApprovalCount())
	}

	if events.count(EventEscrowReleased) != 1 {
		t.Errorf("expected exactly one release event, got %d", events.count(EventEscrowReleased))
	}
	if events.count(EventApprovalAdded) != 4 {
		t.Errorf("expected four approval events, got %d", events.count(EventApprovalAdded))
	}
}

func TestApproveRejections(t *testing.T) {
	l, _ := newTestLedger(t)

	g := linkGroup(t, l, 3)
	e := createGoverned(t, l, g.Address, 1)

	err := l.Approve(outsiderKey, ApproveInput{Group: g.Address, Escrow: e.Address})
	expectErr(t, err, ErrNotMember)
	if ClassOf(err) != ClassAuthorization {
		t.Errorf("expected authorization class, got %s", ClassOf(err))
	}

	if err := l.Approve(member1, ApproveInput{Group: g.Address, Escrow: e.Address}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	err = l.Approve(member1, ApproveInput{Group: g.Address, Escrow: e.Address})
	expectErr(t, err, ErrAlreadyApproved)

	// An ungoverned escrow of the same payer is not the pending one
	other := createNative(t, l, 2, 100)
	err = l.Approve(member2, ApproveInput{Group: g.Address, Escrow: other.Address})
	expectErr(t, err, ErrPendingMismatch)

	err = l.Approve(member2, ApproveInput{Group: address.Address(testKey(80)), Escrow: e.Address})
	expectErr(t, err, ErrNotFound)
}

func TestGovernedEscrowRejectsDirectRelease(t *testing.T) {
	l, _ := newTestLedger(t)

	g := linkGroup(t, l, 1)
	e := createGoverned(t, l, g.Address, 1)

	err := l.Release(payerKey, ReleaseInput{Escrow: e.Address})
	expectErr(t, err, ErrGovernedRelease)
}

func TestGroupHoldsOnePendingEscrow(t *testing.T) {
	l, _ := newTestLedger(t)

	g := linkGroup(t, l, 1)
	first := createGoverned(t, l, g.Address, 1)

	before := balanceOf(t, l, payerKey)

	_, err := l.CreateEscrow(payerKey, CreateEscrowInput{
		Recipient: recipientKey, Amount: 10, Nonce: 2, Governed: true, Group: &g.Address,
	})
	expectErr(t, err, ErrGroupBusy)

	if balanceOf(t, l, payerKey) != before {
		t.Error("busy group rejection moved funds")
	}

	group, _ := l.Group(g.Address)
	if group.Pending == nil || *group.Pending != first.Address {
		t.Error("pending escrow changed by rejected create")
	}
}

func TestClaimResetsGroup(t *testing.T) {
	l, events := newTestLedger(t)

	g := linkGroup(t, l, 3)
	e := createGoverned(t, l, g.Address, 1)

	for _, m := range []address.Key{member1, member2, member3} {
		if err := l.Approve(m, ApproveInput{Group: g.Address, Escrow: e.Address}); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	if err := l.Claim(recipientKey, ClaimInput{Escrow: e.Address}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	group, err := l.Group(g.Address)
	if err != nil {
		t.Fatalf("group should persist: %v", err)
	}
	if group.Pending != nil {
		t.Error("pending escrow not cleared")
	}
	for i, a := range group.Approvals {
		if a {
			t.Errorf("approval %d not cleared", i)
		}
	}

	if events.count(EventGroupReset) != 1 {
		t.Error("expected one reset event")
	}

	// The idle group accepts the next escrow
	next := createGoverned(t, l, g.Address, 2)
	group, _ = l.Group(g.Address)
	if group.Pending == nil || *group.Pending != next.Address {
		t.Error("group did not lock the next escrow")
	}
}

func TestApproveRejectsEscrowFailingItsProof(t *testing.T) {
	l, _ := newTestLedger(t)
	g := linkGroup(t, l, 2)
	e := createGoverned(t, l, g.Address, 1)

	err := l.apply("corrupt", func(w *tx) error {
		stored, err := w.escrow(e.Address)
		if err != nil {
			return err
		}
		stored.Proof = address.Proof{}
		w.save(stored)
		return nil
	})
	if err != nil {
		t.Fatalf("corrupt escrow: %v", err)
	}

	err = l.Approve(member1, ApproveInput{Group: g.Address, Escrow: e.Address})
	expectErr(t, err, ErrAddressMismatch)

	group, _ := l.Group(g.Address)
	if group.ApprovalCount() != 0 {
		t.Errorf("approval recorded against a corrupt escrow: %+v", group)
	}
}
