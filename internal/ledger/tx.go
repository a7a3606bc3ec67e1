package ledger

import (
	"Bondr/internal/address"
	"Bondr/internal/storage"
	"Bondr/internal/types"
)

// Backend is the key-value store the ledger commits to.
// Apply must write every mutation or none of them.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Apply(muts []storage.Mutation) error
	IteratePrefix(prefix []byte, fn func(key, value []byte) error) error
}

// pending is a buffered write. A nil value with deleted set removes the key.
type pending struct {
	value   []byte
	deleted bool
}

// tx is a write overlay over the backend.
// Reads see the overlay first; nothing reaches the backend until commit.
type tx struct {
	backend Backend
	cfg     Config
	writes  map[string]pending
	order   []string // order is the first-write order of keys
	events  []Event
}

func newTx(backend Backend, cfg Config) *tx {
	return &tx{
		backend: backend,
		cfg:     cfg,
		writes:  make(map[string]pending),
	}
}

// get returns the value of key, or nil when absent.
func (t *tx) get(key []byte) ([]byte, error) {
	if p, ok := t.writes[string(key)]; ok {
		if p.deleted {
			return nil, nil
		}
		return p.value, nil
	}

	value, err := t.backend.Get(key)
	if err != nil {
		return nil, withCause(ErrStore, err)
	}

	return value, nil
}

func (t *tx) has(key []byte) (bool, error) {
	value, err := t.get(key)
	return value != nil, err
}

func (t *tx) put(key, value []byte) {
	t.stage(key, pending{value: value})
}

func (t *tx) del(key []byte) {
	t.stage(key, pending{deleted: true})
}

func (t *tx) stage(key []byte, p pending) {
	k := string(key)
	if _, ok := t.writes[k]; !ok {
		t.order = append(t.order, k)
	}
	t.writes[k] = p
}

// mutations returns the buffered writes in first-write order.
func (t *tx) mutations() []storage.Mutation {
	muts := make([]storage.Mutation, 0, len(t.order))
	for _, k := range t.order {
		p := t.writes[k]
		muts = append(muts, storage.Mutation{Key: []byte(k), Value: p.value, Delete: p.deleted})
	}
	return muts
}

func (t *tx) emit(ev Event) {
	t.events = append(t.events, ev)
}

// save bumps the record version and stages its envelope.
func (t *tx) save(r record) {
	r.bump()
	env := r.header()
	env.content = r.encode()
	t.put(r.storeKey(), encodeEnvelope(env))
}

// remove stages deletion of a record.
func (t *tx) remove(r record) {
	t.del(r.storeKey())
}

// load reads and decodes the record at key.
// found is false when the key is absent. A record of another kind is corrupt.
func load[T any](t *tx, key []byte, kind types.RecordKind, decode func(envelope) (T, error)) (rec T, found bool, err error) {
	data, err := t.get(key)
	if err != nil || data == nil {
		return rec, false, err
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return rec, false, err
	}

	if env.kind != kind {
		return rec, false, withDetail(ErrCorruptRecord, "want %s record, found %s", kind, env.kind)
	}

	rec, err = decode(env)
	if err != nil {
		return rec, false, err
	}

	return rec, true, nil
}

// must turns a missing record into ErrNotFound.
func must[T any](rec T, found bool, err error) (T, error) {
	if err != nil {
		return rec, err
	}
	if !found {
		return rec, ErrNotFound
	}
	return rec, nil
}

func (t *tx) escrow(addr address.Address) (*Escrow, error) {
	return must(load(t, recordKey(addr), types.RecordKindEscrow, decodeEscrow))
}

func (t *tx) vault(addr address.Address) (*Vault, error) {
	return must(load(t, recordKey(addr), types.RecordKindVault, decodeVault))
}

func (t *tx) group(addr address.Address) (*Group, error) {
	return must(load(t, recordKey(addr), types.RecordKindMultisig, decodeGroup))
}

func (t *tx) mint(addr address.Address) (*Mint, error) {
	return must(load(t, recordKey(addr), types.RecordKindMint, decodeMint))
}

func (t *tx) remittance(addr address.Address) (*Remittance, error) {
	return must(load(t, recordKey(addr), types.RecordKindRemittance, decodeRemittance))
}

// stats returns the stats of owner; found is false when they were never created.
func (t *tx) stats(f activity, owner address.Key) (*Stats, bool, error) {
	addr, _ := f.derive(owner)
	return load(t, recordKey(addr), f.kind, decodeStats)
}

// badge returns the badge of owner; found is false when it was never created.
func (t *tx) badge(owner address.Key) (*Badge, bool, error) {
	addr, _ := address.Badge(owner)
	return load(t, recordKey(addr), types.RecordKindBadge, decodeBadge)
}

// tokenAccount returns the token account at addr; found is false when it is not open.
func (t *tx) tokenAccount(addr address.Address) (*TokenAccount, bool, error) {
	return load(t, recordKey(addr), types.RecordKindTokenAccount, decodeTokenAccount)
}

// native returns the native account of owner, zeroed when absent.
func (t *tx) native(owner address.Key) (*nativeAccount, error) {
	acct, found, err := load(t, nativeKey(owner), types.RecordKindNativeAccount, decodeNativeAccount)
	if err != nil {
		return nil, err
	}
	if !found {
		return &nativeAccount{owner: owner}, nil
	}
	return acct, nil
}

// claimAddress fails with ErrAlreadyExists when addr is occupied.
func (t *tx) claimAddress(addr address.Address) error {
	exists, err := t.has(recordKey(addr))
	if err != nil {
		return err
	}
	if exists {
		return withDetail(ErrAlreadyExists, "%s", addr.Short())
	}
	return nil
}
