package genesis

import (
	"errors"
	"testing"

	"Bondr/internal/address"
	"Bondr/internal/config"
	"Bondr/internal/ledger"
	"Bondr/internal/storage"
)

func TestApplySeedsEmptyLedger(t *testing.T) {
	l := ledger.New(storage.NewMemory())
	node := address.Key{1}
	friend := address.Key{2}

	cfg := config.Genesis{
		NodeBalance: 1_000_000,
		Airdrops:    []config.Airdrop{{Owner: friend.String(), Amount: 500}},
		Mint:        &config.Mint{Decimals: 6, Supply: 42_000},
	}

	res, err := Apply(l, node, cfg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Applied || res.Airdrops != 1 || res.Mint == nil {
		t.Fatalf("result %+v", res)
	}

	if bal, _ := l.Balance(friend); bal != 500 {
		t.Errorf("friend balance %d, want 500", bal)
	}

	want, _ := address.Mint(node, MintNonce)
	if *res.Mint != want {
		t.Errorf("mint %s, want %s", res.Mint.Short(), want.Short())
	}

	acctAddr, _ := address.TokenAccount(node, want)
	acct, err := l.TokenAccount(acctAddr)
	if err != nil || acct.Balance != 42_000 {
		t.Errorf("node token account %+v %v", acct, err)
	}
}

func TestApplySkipsExistingState(t *testing.T) {
	l := ledger.New(storage.NewMemory())
	node := address.Key{1}

	if _, err := Apply(l, node, config.Genesis{NodeBalance: 100}); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	res, err := Apply(l, node, config.Genesis{NodeBalance: 100})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if res.Applied {
		t.Error("genesis applied twice")
	}
	if bal, _ := l.Balance(node); bal != 100 {
		t.Errorf("node balance %d, want 100", bal)
	}
}

func TestApplyRejectsBadOwner(t *testing.T) {
	l := ledger.New(storage.NewMemory())

	_, err := Apply(l, address.Key{1}, config.Genesis{Airdrops: []config.Airdrop{{Owner: "0OIl", Amount: 1}}})
	if err == nil {
		t.Fatal("invalid owner accepted")
	}
}

func TestApplyMintWithoutBalanceFails(t *testing.T) {
	l := ledger.New(storage.NewMemory())

	_, err := Apply(l, address.Key{1}, config.Genesis{Mint: &config.Mint{Decimals: 2}})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("got %v, want INSUFFICIENT_BALANCE", err)
	}
}
