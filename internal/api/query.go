package api

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"Bondr/internal/address"
	"Bondr/internal/ledger"
	"Bondr/internal/logger"
)

// pathAddress parses the {addr} path value.
func pathAddress(w http.ResponseWriter, r *http.Request) (address.Address, bool) {
	addr, err := address.Parse(r.PathValue("addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid address: %v", err))
		return addr, false
	}
	return addr, true
}

// pathKey parses the {key} path value.
func pathKey(w http.ResponseWriter, r *http.Request) (address.Key, bool) {
	key, err := address.ParseKey(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid key: %v", err))
		return key, false
	}
	return key, true
}

// serveRecord answers a lookup keyed by a record address.
func serveRecord[T any](w http.ResponseWriter, r *http.Request, get func(address.Address) (T, error)) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}

	rec, err := get(addr)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// serveOwned answers a lookup keyed by an owner key.
func serveOwned[T any](w http.ResponseWriter, r *http.Request, get func(address.Key) (T, error)) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}

	rec, err := get(key)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEscrow(w http.ResponseWriter, r *http.Request) {
	serveRecord(w, r, s.ledger.Escrow)
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	serveRecord(w, r, s.ledger.Vault)
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	serveRecord(w, r, s.ledger.Group)
}

func (s *Server) handleRemittance(w http.ResponseWriter, r *http.Request) {
	serveRecord(w, r, s.ledger.Remittance)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	serveRecord(w, r, s.ledger.Mint)
}

func (s *Server) handleTokenAccount(w http.ResponseWriter, r *http.Request) {
	serveRecord(w, r, s.ledger.TokenAccount)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	serveOwned(w, r, s.ledger.Stats)
}

func (s *Server) handleRemitStats(w http.ResponseWriter, r *http.Request) {
	serveOwned(w, r, s.ledger.RemitStats)
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	serveOwned(w, r, s.ledger.Badge)
}

// handleBalance handles GET /balance/{key} requests.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	serveOwned(w, r, func(k address.Key) (map[string]any, error) {
		balance, err := s.ledger.Balance(k)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"owner":   k,
			"balance": balance,
			"display": ledger.FormatAmount(balance, ledger.Native()),
		}, nil
	})
}

// handleSnapshot handles GET /snapshot requests.
// The body is the compressed snapshot; the checksum travels in a header.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, checksum, err := s.ledger.Snapshot()
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("X-Snapshot-Checksum", hex.EncodeToString(checksum[:]))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		logger.Warn("snapshot write failed", "error", err)
	}
}

// handleDerive handles GET /derive?kind=...
// Parameters per kind:
//
//	escrow, vault: payer, recipient, nonce
//	multisig:      payer
//	stats, badge:  owner
//	remittance:    sender, receiver, seed
//	mint:          authority, nonce
//	token-account: owner, mint
func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	addr, proof, err := derive(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"proof":   proof,
	})
}

// derive recomputes an address from query parameters.
func derive(q url.Values) (address.Address, address.Proof, error) {
	p := params{q: q}

	var (
		addr  address.Address
		proof address.Proof
	)

	switch kind := q.Get("kind"); kind {
	case "escrow":
		addr, proof = address.Escrow(p.key("payer"), p.key("recipient"), p.uint("nonce"))
	case "vault":
		addr, proof = address.Vault(p.key("payer"), p.key("recipient"), p.uint("nonce"))
	case "multisig":
		addr, proof = address.Multisig(p.key("payer"))
	case "stats":
		addr, proof = address.Stats(p.key("owner"))
	case "remit-stats":
		addr, proof = address.RemitStats(p.key("owner"))
	case "badge":
		addr, proof = address.Badge(p.key("owner"))
	case "remittance":
		addr, proof = address.Remittance(p.key("sender"), p.key("receiver"), p.uint("seed"))
	case "mint":
		addr, proof = address.Mint(p.key("authority"), p.uint("nonce"))
	case "token-account":
		addr, proof = address.TokenAccount(p.key("owner"), p.address("mint"))
	default:
		return addr, proof, fmt.Errorf("unknown kind %q", kind)
	}

	return addr, proof, p.err
}

// params parses query values, keeping the first failure.
type params struct {
	q   url.Values
	err error
}

func (p *params) fail(name string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parameter %s: %v", name, err)
	}
}

func (p *params) key(name string) address.Key {
	k, err := address.ParseKey(p.q.Get(name))
	if err != nil {
		p.fail(name, err)
	}
	return k
}

func (p *params) address(name string) address.Address {
	a, err := address.Parse(p.q.Get(name))
	if err != nil {
		p.fail(name, err)
	}
	return a
}

func (p *params) uint(name string) uint64 {
	n, err := strconv.ParseUint(p.q.Get(name), 10, 64)
	if err != nil {
		p.fail(name, err)
	}
	return n
}
