package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"Bondr/internal/address"
	"Bondr/internal/types"
)

// Tier is a reputation level. Tiers are ordered.
type Tier uint8

const (
	TierUnranked Tier = iota
	TierVerified
	TierProfessional
	TierElite
)

// Completion counts at which each tier becomes eligible.
const (
	VerifiedCompletions     = 3
	ProfessionalCompletions = 10
	EliteCompletions        = 25
)

// String returns the tier label passed to the issuer.
func (t Tier) String() string {
	switch t {
	case TierUnranked:
		return "Unranked"
	case TierVerified:
		return "Verified"
	case TierProfessional:
		return "Professional"
	case TierElite:
		return "Elite"
	default:
		return fmt.Sprintf("Tier(%d)", uint8(t))
	}
}

// MarshalJSON encodes the tier as its label.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a tier label.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for c := TierUnranked; c <= TierElite; c++ {
		if c.String() == s {
			*t = c
			return nil
		}
	}

	return fmt.Errorf("unknown tier %q", s)
}

// EligibleTier returns the highest tier a completion count qualifies for.
func EligibleTier(completed uint64) Tier {
	switch {
	case completed >= EliteCompletions:
		return TierElite
	case completed >= ProfessionalCompletions:
		return TierProfessional
	case completed >= VerifiedCompletions:
		return TierVerified
	default:
		return TierUnranked
	}
}

// InitBadge creates recipient's badge with zeroed counters.
func (l *Ledger) InitBadge(recipient address.Key) (*Badge, error) {
	var b *Badge

	err := l.apply(OpInitBadge, func(t *tx) error {
		addr, _ := address.Badge(recipient)
		if err := t.claimAddress(addr); err != nil {
			return err
		}

		if _, err := t.chargeDeposit(recipient, types.RecordKindBadge); err != nil {
			return err
		}

		b = &Badge{Address: addr, Owner: recipient, Tier: TierUnranked}
		t.save(b)

		t.emit(Event{Kind: EventBadgeInitialized, Address: addr, Actor: recipient})

		return nil
	})

	return b, err
}

// UpdateBadgeInput is the input of UpdateBadge.
type UpdateBadgeInput struct {
	Amount uint64           `json:"amount"`
	Badge  *address.Address `json:"badge,omitempty"`
}

// UpdateBadge records one completion of amount on the signer's badge.
// The recorded tier is left unchanged.
func (l *Ledger) UpdateBadge(recipient address.Key, in UpdateBadgeInput) (*Badge, error) {
	var b *Badge

	err := l.apply(OpUpdateBadge, func(t *tx) error {
		if in.Amount == 0 {
			return ErrAmountZero
		}

		addr, _ := address.Badge(recipient)
		if err := checkPresented(in.Badge, addr); err != nil {
			return err
		}

		var err error
		b, err = must(t.badge(recipient))
		if err != nil {
			return err
		}

		if b.Owner != recipient {
			return ErrUnauthorized
		}

		return t.completeBadge(b, in.Amount)
	})

	return b, err
}

// completeBadge adds one completion of amount to b.
func (t *tx) completeBadge(b *Badge, amount uint64) error {
	value, err := add(b.Value, amount)
	if err != nil {
		return err
	}

	b.Completed++
	b.Value = value
	t.save(b)

	t.emit(Event{Kind: EventBadgeUpdated, Address: b.Address, Actor: b.Owner, Amount: amount, Count: b.Completed})

	return nil
}

// IssueCredentialInput is the input of IssueCredential.
type IssueCredentialInput struct {
	Badge *address.Address `json:"badge,omitempty"`
}

// IssueCredential issues a credential for the highest tier recipient's badge qualifies for.
// Each tier is issued at most once and the recorded tier only moves up.
// The issuer is called while the ledger is locked; if it fails nothing is written.
func (l *Ledger) IssueCredential(ctx context.Context, recipient address.Key, in IssueCredentialInput) (Credential, error) {
	var cred Credential

	err := l.apply(OpIssueCredential, func(t *tx) error {
		addr, _ := address.Badge(recipient)
		if err := checkPresented(in.Badge, addr); err != nil {
			return err
		}

		b, err := must(t.badge(recipient))
		if err != nil {
			return err
		}

		if b.Owner != recipient {
			return ErrUnauthorized
		}

		eligible := EligibleTier(b.Completed)
		if eligible == TierUnranked {
			return withDetail(ErrInsufficientCompletions, "%d completed, %d required", b.Completed, VerifiedCompletions)
		}

		if eligible <= b.Tier || b.Issued(eligible) {
			return withDetail(ErrCredentialIssued, "tier %s", eligible)
		}

		if l.issuer == nil {
			return withDetail(ErrIssuerFailed, "no issuer configured")
		}

		id, err := l.issuer.Issue(ctx, recipient, eligible.String())
		if err != nil {
			return withCause(ErrIssuerFailed, err)
		}

		cred = Credential{Tier: eligible, ID: id}
		b.Tier = eligible
		b.Credentials = append(b.Credentials, cred)
		t.save(b)

		t.emit(Event{Kind: EventCredentialIssued, Address: addr, Actor: recipient, Tier: eligible.String(), Credential: id})

		return nil
	})

	return cred, err
}
