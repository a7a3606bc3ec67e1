package ledger

import (
	"Bondr/internal/address"
	"Bondr/internal/types"
)

// LinkGroupInput is the input of LinkGroup. Members[0] must be the payer.
type LinkGroupInput struct {
	Members   []address.Key    `json:"members"`
	Threshold uint8            `json:"threshold"`
	Group     *address.Address `json:"group,omitempty"`
}

// validate checks the member list and threshold for payer.
func (in LinkGroupInput) validate(payer address.Key) error {
	n := len(in.Members)
	if n == 0 || n > MaxMembers {
		return withDetail(ErrInvalidGovernance, "%d members, want 1..%d", n, MaxMembers)
	}
	if in.Members[0] != payer {
		return withDetail(ErrInvalidGovernance, "payer must be the first member")
	}

	seen := make(map[address.Key]struct{}, n)
	for _, m := range in.Members {
		if m.IsZero() {
			return withDetail(ErrInvalidGovernance, "zero member key")
		}
		if _, dup := seen[m]; dup {
			return withDetail(ErrInvalidGovernance, "duplicate member %s", m.Short())
		}
		seen[m] = struct{}{}
	}

	if in.Threshold == 0 || int(in.Threshold) > n {
		return withDetail(ErrInvalidGovernance, "threshold %d with %d members", in.Threshold, n)
	}

	return nil
}

// LinkGroup creates payer's approval group. A payer has at most one group.
func (l *Ledger) LinkGroup(payer address.Key, in LinkGroupInput) (*Group, error) {
	var g *Group

	err := l.apply(OpLinkGroup, func(t *tx) error {
		if err := in.validate(payer); err != nil {
			return err
		}

		addr, proof := address.Multisig(payer)
		if err := checkPresented(in.Group, addr); err != nil {
			return err
		}
		if err := t.claimAddress(addr); err != nil {
			return err
		}

		if _, err := t.chargeDeposit(payer, types.RecordKindMultisig); err != nil {
			return err
		}

		g = &Group{
			Address:   addr,
			Payer:     payer,
			Members:   append([]address.Key(nil), in.Members...),
			Threshold: in.Threshold,
			Approvals: make([]bool, len(in.Members)),
			Proof:     proof,
		}
		t.save(g)

		t.emit(Event{Kind: EventGroupLinked, Address: addr, Actor: payer, Count: uint64(len(g.Members))})

		return nil
	})

	return g, err
}

// lockGroup links a new escrow to payer's idle group.
func (t *tx) lockGroup(payer address.Key, addr, escrow address.Address) error {
	own, _ := address.Multisig(payer)
	if addr != own {
		return withDetail(ErrInvalidGovernance, "group %s is not the payer's group", addr.Short())
	}

	g, err := t.group(addr)
	if err != nil {
		return err
	}

	if g.MemberIndex(payer) < 0 {
		return withDetail(ErrInvalidGovernance, "payer is not a member of its group")
	}
	if !g.Idle() {
		return withDetail(ErrGroupBusy, "pending escrow %s", g.Pending.Short())
	}

	g.Pending = &escrow
	g.Approvals = make([]bool, len(g.Members))
	t.save(g)

	return nil
}

// resetGroup returns a group to idle.
func (t *tx) resetGroup(addr address.Address) error {
	g, err := t.group(addr)
	if err != nil {
		return err
	}

	g.reset()
	t.save(g)

	t.emit(Event{Kind: EventGroupReset, Address: addr, Actor: g.Payer})

	return nil
}

// ApproveInput is the input of Approve.
type ApproveInput struct {
	Group  address.Address `json:"group"`
	Escrow address.Address `json:"escrow"`
}

// Approve records member's approval of the group's pending escrow.
// The approval that reaches the threshold releases the escrow. Later approvals are recorded
// without further effect.
func (l *Ledger) Approve(member address.Key, in ApproveInput) error {
	return l.apply(OpApprove, func(t *tx) error {
		g, err := t.group(in.Group)
		if err != nil {
			return err
		}

		e, err := t.verifiedEscrow(in.Escrow)
		if err != nil {
			return err
		}

		idx := g.MemberIndex(member)
		if idx < 0 {
			return ErrNotMember
		}

		if g.Pending == nil || *g.Pending != e.Address || e.Group == nil || *e.Group != g.Address {
			return ErrPendingMismatch
		}

		if g.Approvals[idx] {
			return ErrAlreadyApproved
		}

		g.Approvals[idx] = true
		t.save(g)

		count := g.ApprovalCount()
		t.emit(Event{Kind: EventApprovalAdded, Address: e.Address, Actor: member, Count: uint64(count)})

		if count >= int(g.Threshold) && !e.Released {
			e.Released = true
			t.save(e)

			t.emit(Event{Kind: EventEscrowReleased, Address: e.Address, Actor: member, Amount: e.Amount})
		}

		return nil
	})
}
