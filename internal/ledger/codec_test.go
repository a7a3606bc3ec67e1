package ledger

import (
	"errors"
	"testing"

	"Bondr/internal/address"
	"Bondr/internal/types"
)

func TestGroupRecordKeepsOptionalPending(t *testing.T) {
	pending := address.Address(testKey(30))
	g := &Group{
		Address:   address.Address(testKey(31)),
		Payer:     payerKey,
		Members:   []address.Key{payerKey, member1, member2},
		Threshold: 2,
		Approvals: []bool{false, true, false},
		Pending:   &pending,
	}

	for _, p := range []*address.Address{&pending, nil} {
		g.Pending = p

		env := g.header()
		env.content = g.encode()

		decoded, err := decodeEnvelope(encodeEnvelope(env))
		if err != nil {
			t.Fatalf("decode envelope: %v", err)
		}

		got, err := decodeGroup(decoded)
		if err != nil {
			t.Fatalf("decode group: %v", err)
		}

		if (got.Pending == nil) != (p == nil) {
			t.Fatalf("pending presence lost: %v", got.Pending)
		}
		if len(got.Members) != 3 || !got.Approvals[1] || got.Threshold != 2 {
			t.Errorf("unexpected group: %+v", got)
		}
	}
}

func TestDecodeRejectsMalformedData(t *testing.T) {
	inputs := map[string][]byte{
		"empty":   nil,
		"short":   {1, 2, 3},
		"garbage": []byte("definitely not a flatbuffer record"),
	}

	for name, data := range inputs {
		if _, err := decodeEnvelope(data); !errors.Is(err, ErrCorruptRecord) {
			t.Errorf("%s: expected corrupt record, got %v", name, err)
		}
	}

	s := &Stats{Address: address.Address(testKey(1)), Owner: payerKey, Count: 2}
	env := s.header()
	env.content = s.encode()[:10]

	if _, err := decodeStats(env); !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("truncated body: expected corrupt record, got %v", err)
	}

	env.content = append(s.encode(), 0)
	if _, err := decodeStats(env); !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("trailing bytes: expected corrupt record, got %v", err)
	}
}

func TestLoadRejectsWrongKind(t *testing.T) {
	l, _ := newTestLedger(t)

	e := createNative(t, l, 1, 10)

	// The vault key holds a vault, not an escrow
	_, err := l.Escrow(e.Vault)
	if !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("expected corrupt record, got %v", err)
	}

	env := (&Vault{}).header()
	if env.kind != types.RecordKindVault {
		t.Errorf("vault header kind = %s", env.kind)
	}
}
