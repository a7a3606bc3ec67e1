package ledger

import (
	"context"
	"errors"
	"testing"

	"Bondr/internal/address"
	"Bondr/internal/storage"
	"Bondr/internal/types"
)

// testKey returns a distinct key for each seed.
func testKey(seed byte) address.Key {
	var k address.Key
	for i := range k {
		k[i] = seed
	}
	return k
}

var (
	payerKey     = testKey(1)
	recipientKey = testKey(2)
	member1      = testKey(3)
	member2      = testKey(4)
	member3      = testKey(5)
	member4      = testKey(6)
	outsiderKey  = testKey(9)
)

// eventLog collects published events.
type eventLog struct {
	events []Event
}

func (e *eventLog) Publish(ev Event) {
	e.events = append(e.events, ev)
}

func (e *eventLog) count(kind EventKind) int {
	n := 0
	for _, ev := range e.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// fakeIssuer returns sequential ids, or err when set.
type fakeIssuer struct {
	calls []string
	err   error
}

func (f *fakeIssuer) Issue(_ context.Context, _ address.Key, tier string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, tier)
	return "cred-" + tier, nil
}

// testConfig charges one native unit per reserved byte.
var testConfig = Config{MaxAmount: DefaultMaxAmount, DepositPerByte: 1}

// newTestLedger creates a memory-backed ledger and funds the common keys.
func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *eventLog) {
	t.Helper()

	events := &eventLog{}
	opts = append([]Option{WithConfig(testConfig), WithSink(events)}, opts...)
	l := New(storage.NewMemory(), opts...)

	for _, k := range []address.Key{payerKey, recipientKey, member1, member2, member3, member4} {
		if err := l.Airdrop(k, 1_000_000); err != nil {
			t.Fatalf("airdrop: %v", err)
		}
	}

	return l, events
}

func balanceOf(t *testing.T, l *Ledger, k address.Key) uint64 {
	t.Helper()

	b, err := l.Balance(k)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func deposit(kind types.RecordKind) uint64 {
	return testConfig.deposit(kind)
}

// expectErr fails unless err matches want under errors.Is.
func expectErr(t *testing.T, err, want error) {
	t.Helper()

	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

// createNative creates an ungoverned native escrow from payer to recipient.
func createNative(t *testing.T, l *Ledger, nonce, amount uint64) *Escrow {
	t.Helper()

	e, err := l.CreateEscrow(payerKey, CreateEscrowInput{
		Recipient: recipientKey,
		Amount:    amount,
		Nonce:     nonce,
		Asset:     Native(),
	})
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}
	return e
}

// completeEscrow creates, releases and claims one native escrow.
func completeEscrow(t *testing.T, l *Ledger, nonce, amount uint64) {
	t.Helper()

	e := createNative(t, l, nonce, amount)
	if err := l.Release(payerKey, ReleaseInput{Escrow: e.Address}); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l.Claim(recipientKey, ClaimInput{Escrow: e.Address}); err != nil {
		t.Fatalf("claim: %v", err)
	}
}

// linkGroup links the five-member group used by the governance tests.
func linkGroup(t *testing.T, l *Ledger, threshold uint8) *Group {
	t.Helper()

	g, err := l.LinkGroup(payerKey, LinkGroupInput{
		Members:   []address.Key{payerKey, member1, member2, member3, member4},
		Threshold: threshold,
	})
	if err != nil {
		t.Fatalf("link group: %v", err)
	}
	return g
}

// createGoverned creates a native escrow linked to payer's group.
func createGoverned(t *testing.T, l *Ledger, group address.Address, nonce uint64) *Escrow {
	t.Helper()

	e, err := l.CreateEscrow(payerKey, CreateEscrowInput{
		Recipient: recipientKey,
		Amount:    500,
		Nonce:     nonce,
		Asset:     Native(),
		Governed:  true,
		Group:     &group,
	})
	if err != nil {
		t.Fatalf("create governed escrow: %v", err)
	}
	return e
}
