package genesis

import (
	"fmt"

	"Bondr/internal/address"
	"Bondr/internal/config"
	"Bondr/internal/ledger"
	"Bondr/internal/logger"
)

// MintNonce is the nonce of the genesis mint under the node key.
const MintNonce = 0

// Result describes what Apply credited.
type Result struct {
	Applied  bool             // Applied is false when the store already held state
	Airdrops int              // Airdrops is the number of credited owners
	Mint     *address.Address // Mint is the genesis mint, if one was configured
}

// Apply seeds an empty ledger: the node balance, airdrops, then the optional mint
// whose whole supply goes to the node's token account.
// A ledger that already holds state is left untouched.
func Apply(l *ledger.Ledger, node address.Key, cfg config.Genesis) (Result, error) {
	var res Result

	empty, err := l.Empty()
	if err != nil {
		return res, fmt.Errorf("inspect store:\n%w", err)
	}
	if !empty {
		return res, nil
	}

	if cfg.NodeBalance > 0 {
		if err := l.Airdrop(node, cfg.NodeBalance); err != nil {
			return res, fmt.Errorf("credit node:\n%w", err)
		}
	}

	for i, a := range cfg.Airdrops {
		owner, err := address.ParseKey(a.Owner)
		if err != nil {
			return res, fmt.Errorf("airdrop %d owner:\n%w", i, err)
		}

		if err := l.Airdrop(owner, a.Amount); err != nil {
			return res, fmt.Errorf("airdrop %d:\n%w", i, err)
		}

		res.Airdrops++
	}

	if cfg.Mint != nil {
		mint, err := applyMint(l, node, *cfg.Mint)
		if err != nil {
			return res, err
		}
		res.Mint = &mint
	}

	res.Applied = true

	logger.Info("genesis applied", "node", node.Short(), "airdrops", res.Airdrops, "mint", res.Mint != nil)

	return res, nil
}

// applyMint creates the node's mint and credits the supply to the node.
func applyMint(l *ledger.Ledger, node address.Key, cfg config.Mint) (address.Address, error) {
	m, err := l.CreateMint(node, ledger.CreateMintInput{Nonce: MintNonce, Decimals: cfg.Decimals})
	if err != nil {
		return address.Address{}, fmt.Errorf("create mint:\n%w", err)
	}

	if _, err := l.OpenTokenAccount(node, ledger.OpenTokenAccountInput{Mint: m.Address}); err != nil {
		return m.Address, fmt.Errorf("open node token account:\n%w", err)
	}

	if cfg.Supply > 0 {
		in := ledger.MintToInput{Mint: m.Address, Owner: node, Amount: cfg.Supply}
		if err := l.MintTo(node, in); err != nil {
			return m.Address, fmt.Errorf("mint supply:\n%w", err)
		}
	}

	return m.Address, nil
}
