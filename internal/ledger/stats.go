package ledger

import (
	"Bondr/internal/address"
	"Bondr/internal/types"
)

// Milestone names a loyalty level reached by activity count.
type Milestone string

const (
	MilestoneNovice Milestone = "Novice"
	MilestoneExpert Milestone = "Expert"
	MilestoneElite  Milestone = "Elite"
)

// milestones are the count boundaries, in increasing order.
var milestones = []struct {
	count uint64
	name  Milestone
}{
	{3, MilestoneNovice},
	{10, MilestoneExpert},
	{25, MilestoneElite},
}

// crossedMilestone returns the milestone whose boundary lies in (before, after].
func crossedMilestone(before, after uint64) (Milestone, bool) {
	for _, m := range milestones {
		if before < m.count && after >= m.count {
			return m.name, true
		}
	}
	return "", false
}

// activity selects a stats family. Escrow claims and remittances are counted
// in separate records, each with its own milestones.
type activity struct {
	kind   types.RecordKind
	derive func(address.Key) (address.Address, address.Proof)
}

var (
	escrowActivity = activity{kind: types.RecordKindStats, derive: address.Stats}
	remitActivity  = activity{kind: types.RecordKindRemitStats, derive: address.RemitStats}
)

// ensureStats returns owner's stats in family f, creating a zeroed record paid by payer when absent.
func (t *tx) ensureStats(f activity, owner, payer address.Key) (*Stats, error) {
	s, found, err := t.stats(f, owner)
	if err != nil || found {
		return s, err
	}

	if _, err := t.chargeDeposit(payer, f.kind); err != nil {
		return nil, err
	}

	addr, _ := f.derive(owner)
	s = &Stats{Address: addr, Owner: owner, kind: f.kind}
	t.save(s)

	return s, nil
}

// recordActivity adds one completion of amount to owner's stats in family f
// and emits a milestone event when a boundary is crossed.
func (t *tx) recordActivity(f activity, owner address.Key, amount uint64) error {
	s, err := t.ensureStats(f, owner, owner)
	if err != nil {
		return err
	}

	total, err := add(s.Total, amount)
	if err != nil {
		return err
	}

	before := s.Count
	s.Count++
	s.Total = total
	t.save(s)

	if m, ok := crossedMilestone(before, s.Count); ok {
		t.emit(Event{Kind: EventMilestoneReached, Address: s.Address, Actor: owner, Count: s.Count, Milestone: m})
	}

	return nil
}
