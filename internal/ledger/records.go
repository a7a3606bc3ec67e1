package ledger

import (
	"Bondr/internal/address"
	"Bondr/internal/types"
)

// MaxMembers is the capacity of an approval group.
const MaxMembers = 5

// Storage key prefixes.
var (
	prefixRecord = []byte("r:")
	prefixNative = []byte("n:")
)

// recordSpace is the space each record family reserves, in bytes.
// Storage deposits are charged per reserved byte.
var recordSpace = map[types.RecordKind]uint64{
	types.RecordKindEscrow:       8 + 32 + 32 + 8 + 34 + 1 + 33 + 8 + 32 + 32 + 32 + 8,
	types.RecordKindVault:        8 + 32 + 34 + 8 + 32 + 8,
	types.RecordKindMultisig:     8 + 32 + 1 + 32*MaxMembers + 1 + 1 + MaxMembers + 33 + 32,
	types.RecordKindStats:        8 + 32 + 8 + 8,
	types.RecordKindRemitStats:   8 + 32 + 8 + 8,
	types.RecordKindBadge:        8 + 32 + 8 + 8 + 1 + 1 + 3*(1+4+36),
	types.RecordKindRemittance:   8 + 32 + 32 + 8 + 8 + 8,
	types.RecordKindMint:         8 + 32 + 1 + 8 + 8,
	types.RecordKindTokenAccount: 8 + 32 + 32 + 8,
}

func recordKey(addr address.Address) []byte {
	key := make([]byte, 0, len(prefixRecord)+address.Size)
	key = append(key, prefixRecord...)
	return append(key, addr[:]...)
}

func nativeKey(owner address.Key) []byte {
	key := make([]byte, 0, len(prefixNative)+address.Size)
	key = append(key, prefixNative...)
	return append(key, owner[:]...)
}

// Escrow is a custody record between a payer and a recipient.
type Escrow struct {
	Address   address.Address  `json:"address"`
	Payer     address.Key      `json:"payer"`
	Recipient address.Key      `json:"recipient"`
	Amount    uint64           `json:"amount"`
	Asset     Asset            `json:"asset"`
	Released  bool             `json:"released"`
	Group     *address.Address `json:"group,omitempty"`
	Nonce     uint64           `json:"nonce"`
	Vault     address.Address  `json:"vault"`
	Proof     address.Proof    `json:"proof"`
	Funder    address.Key      `json:"funder"`
	Deposit   uint64           `json:"deposit"`
	Version   uint64           `json:"version"`
}

// Governed reports whether release goes through an approval group.
func (e *Escrow) Governed() bool {
	return e.Group != nil
}

func (e *Escrow) encode() []byte {
	var enc encoder
	enc.fixed(e.Payer)
	enc.fixed(e.Recipient)
	enc.u64(e.Amount)
	enc.asset(e.Asset)
	enc.boolean(e.Released)
	enc.optAddress(e.Group)
	enc.u64(e.Nonce)
	enc.fixed(e.Vault)
	enc.fixed(e.Proof)
	enc.fixed(e.Funder)
	enc.u64(e.Deposit)
	return enc.buf
}

func decodeEscrow(env envelope) (*Escrow, error) {
	d := decoder{buf: env.content}
	e := &Escrow{
		Address:   address.Address(env.id),
		Payer:     address.Key(d.fixed()),
		Recipient: address.Key(d.fixed()),
		Amount:    d.u64(),
		Asset:     d.asset(),
		Released:  d.boolean(),
		Group:     d.optAddress(),
		Nonce:     d.u64(),
		Vault:     address.Address(d.fixed()),
		Proof:     address.Proof(d.fixed()),
		Funder:    address.Key(d.fixed()),
		Deposit:   d.u64(),
		Version:   env.version,
	}
	return e, d.finish()
}

// Vault holds the escrowed balance of exactly one Escrow.
type Vault struct {
	Address address.Address `json:"address"`
	Escrow  address.Address `json:"escrow"`
	Asset   Asset           `json:"asset"`
	Balance uint64          `json:"balance"`
	Proof   address.Proof   `json:"proof"`
	Deposit uint64          `json:"deposit"`
	Version uint64          `json:"version"`
}

func (v *Vault) encode() []byte {
	var enc encoder
	enc.fixed(v.Escrow)
	enc.asset(v.Asset)
	enc.u64(v.Balance)
	enc.fixed(v.Proof)
	enc.u64(v.Deposit)
	return enc.buf
}

func decodeVault(env envelope) (*Vault, error) {
	d := decoder{buf: env.content}
	v := &Vault{
		Address: address.Address(env.id),
		Escrow:  address.Address(d.fixed()),
		Asset:   d.asset(),
		Balance: d.u64(),
		Proof:   address.Proof(d.fixed()),
		Deposit: d.u64(),
		Version: env.version,
	}
	return v, d.finish()
}

// Group is a payer's approval group. Members[0] is always the payer and
// Approvals[i] belongs to Members[i].
type Group struct {
	Address   address.Address  `json:"address"`
	Payer     address.Key      `json:"payer"`
	Members   []address.Key    `json:"members"`
	Threshold uint8            `json:"threshold"`
	Approvals []bool           `json:"approvals"`
	Pending   *address.Address `json:"pending,omitempty"`
	Proof     address.Proof    `json:"proof"`
	Version   uint64           `json:"version"`
}

// MemberIndex returns the slot of k, or -1 when k is not a member.
func (g *Group) MemberIndex(k address.Key) int {
	for i, m := range g.Members {
		if m == k {
			return i
		}
	}
	return -1
}

// ApprovalCount returns the number of members that approved the pending escrow.
func (g *Group) ApprovalCount() int {
	n := 0
	for _, a := range g.Approvals {
		if a {
			n++
		}
	}
	return n
}

// Idle reports whether no escrow is linked to the group.
func (g *Group) Idle() bool {
	return g.Pending == nil
}

// reset unlinks the pending escrow and clears every approval.
func (g *Group) reset() {
	g.Pending = nil
	g.Approvals = make([]bool, len(g.Members))
}

func (g *Group) encode() []byte {
	var enc encoder
	enc.fixed(g.Payer)
	enc.u8(uint8(len(g.Members)))
	for _, m := range g.Members {
		enc.fixed(m)
	}
	enc.u8(g.Threshold)
	enc.u8(uint8(len(g.Approvals)))
	for _, a := range g.Approvals {
		enc.boolean(a)
	}
	enc.optAddress(g.Pending)
	enc.fixed(g.Proof)
	return enc.buf
}

func decodeGroup(env envelope) (*Group, error) {
	d := decoder{buf: env.content}
	g := &Group{
		Address: address.Address(env.id),
		Payer:   address.Key(d.fixed()),
		Version: env.version,
	}

	n := int(d.u8())
	if n > MaxMembers {
		return nil, withDetail(ErrCorruptRecord, "group holds %d members", n)
	}
	g.Members = make([]address.Key, n)
	for i := range g.Members {
		g.Members[i] = address.Key(d.fixed())
	}

	g.Threshold = d.u8()

	n = int(d.u8())
	if n != len(g.Members) {
		return nil, withDetail(ErrCorruptRecord, "approvals misaligned with members")
	}
	g.Approvals = make([]bool, n)
	for i := range g.Approvals {
		g.Approvals[i] = d.boolean()
	}

	g.Pending = d.optAddress()
	g.Proof = address.Proof(d.fixed())

	return g, d.finish()
}

// Stats holds a participant's cumulative activity in one family:
// claimed escrows, or sent remittances.
type Stats struct {
	Address address.Address `json:"address"`
	Owner   address.Key     `json:"owner"`
	Total   uint64          `json:"total"`
	Count   uint64          `json:"count"`
	Version uint64          `json:"version"`

	kind types.RecordKind
}

func (s *Stats) encode() []byte {
	var enc encoder
	enc.fixed(s.Owner)
	enc.u64(s.Total)
	enc.u64(s.Count)
	return enc.buf
}

func decodeStats(env envelope) (*Stats, error) {
	d := decoder{buf: env.content}
	s := &Stats{
		Address: address.Address(env.id),
		Owner:   address.Key(d.fixed()),
		Total:   d.u64(),
		Count:   d.u64(),
		Version: env.version,
		kind:    env.kind,
	}
	return s, d.finish()
}

// Credential is an issued tier credential.
type Credential struct {
	Tier Tier   `json:"tier"`
	ID   string `json:"id"`
}

// Badge is a recipient's reputation record.
type Badge struct {
	Address     address.Address `json:"address"`
	Owner       address.Key     `json:"owner"`
	Completed   uint64          `json:"completed"`
	Value       uint64          `json:"value"`
	Tier        Tier            `json:"tier"`
	Credentials []Credential    `json:"credentials"`
	Version     uint64          `json:"version"`
}

// Issued reports whether a credential for t was issued.
func (b *Badge) Issued(t Tier) bool {
	for _, c := range b.Credentials {
		if c.Tier == t {
			return true
		}
	}
	return false
}

func (b *Badge) encode() []byte {
	var enc encoder
	enc.fixed(b.Owner)
	enc.u64(b.Completed)
	enc.u64(b.Value)
	enc.u8(uint8(b.Tier))
	enc.u8(uint8(len(b.Credentials)))
	for _, c := range b.Credentials {
		enc.u8(uint8(c.Tier))
		enc.str(c.ID)
	}
	return enc.buf
}

func decodeBadge(env envelope) (*Badge, error) {
	d := decoder{buf: env.content}
	b := &Badge{
		Address:   address.Address(env.id),
		Owner:     address.Key(d.fixed()),
		Completed: d.u64(),
		Value:     d.u64(),
		Tier:      Tier(d.u8()),
		Version:   env.version,
	}

	n := int(d.u8())
	b.Credentials = make([]Credential, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		b.Credentials = append(b.Credentials, Credential{Tier: Tier(d.u8()), ID: d.str()})
	}

	return b, d.finish()
}

// Remittance is a single-phase transfer record, settled by its sender.
type Remittance struct {
	Address  address.Address `json:"address"`
	Sender   address.Key     `json:"sender"`
	Receiver address.Key     `json:"receiver"`
	Amount   uint64          `json:"amount"`
	Seed     uint64          `json:"seed"`
	Deposit  uint64          `json:"deposit"`
	Version  uint64          `json:"version"`
}

func (r *Remittance) encode() []byte {
	var enc encoder
	enc.fixed(r.Sender)
	enc.fixed(r.Receiver)
	enc.u64(r.Amount)
	enc.u64(r.Seed)
	enc.u64(r.Deposit)
	return enc.buf
}

func decodeRemittance(env envelope) (*Remittance, error) {
	d := decoder{buf: env.content}
	r := &Remittance{
		Address:  address.Address(env.id),
		Sender:   address.Key(d.fixed()),
		Receiver: address.Key(d.fixed()),
		Amount:   d.u64(),
		Seed:     d.u64(),
		Deposit:  d.u64(),
		Version:  env.version,
	}
	return r, d.finish()
}

// Mint defines a token and its precision.
type Mint struct {
	Address   address.Address `json:"address"`
	Authority address.Key     `json:"authority"`
	Decimals  uint8           `json:"decimals"`
	Supply    uint64          `json:"supply"`
	Nonce     uint64          `json:"nonce"`
	Version   uint64          `json:"version"`
}

func (m *Mint) encode() []byte {
	var enc encoder
	enc.fixed(m.Authority)
	enc.u8(m.Decimals)
	enc.u64(m.Supply)
	enc.u64(m.Nonce)
	return enc.buf
}

func decodeMint(env envelope) (*Mint, error) {
	d := decoder{buf: env.content}
	m := &Mint{
		Address:   address.Address(env.id),
		Authority: address.Key(d.fixed()),
		Decimals:  d.u8(),
		Supply:    d.u64(),
		Nonce:     d.u64(),
		Version:   env.version,
	}
	return m, d.finish()
}

// TokenAccount holds one owner's balance of one mint.
type TokenAccount struct {
	Address address.Address `json:"address"`
	Owner   address.Key     `json:"owner"`
	Mint    address.Address `json:"mint"`
	Balance uint64          `json:"balance"`
	Version uint64          `json:"version"`
}

func (t *TokenAccount) encode() []byte {
	var enc encoder
	enc.fixed(t.Owner)
	enc.fixed(t.Mint)
	enc.u64(t.Balance)
	return enc.buf
}

func decodeTokenAccount(env envelope) (*TokenAccount, error) {
	d := decoder{buf: env.content}
	t := &TokenAccount{
		Address: address.Address(env.id),
		Owner:   address.Key(d.fixed()),
		Mint:    address.Address(d.fixed()),
		Balance: d.u64(),
		Version: env.version,
	}
	return t, d.finish()
}

// nativeAccount is the native balance of one participant.
type nativeAccount struct {
	owner   address.Key
	balance uint64
	version uint64
}

func (n *nativeAccount) encode() []byte {
	var enc encoder
	enc.u64(n.balance)
	return enc.buf
}

func decodeNativeAccount(env envelope) (*nativeAccount, error) {
	d := decoder{buf: env.content}
	n := &nativeAccount{
		owner:   env.owner,
		balance: d.u64(),
		version: env.version,
	}
	return n, d.finish()
}

// record is implemented by every stored record type.
type record interface {
	storeKey() []byte
	header() envelope
	bump()
	encode() []byte
}

func (e *Escrow) storeKey() []byte { return recordKey(e.Address) }
func (e *Escrow) bump()            { e.Version++ }
func (e *Escrow) header() envelope {
	return envelope{id: e.Address, kind: types.RecordKindEscrow, version: e.Version, owner: e.Payer}
}

func (v *Vault) storeKey() []byte { return recordKey(v.Address) }
func (v *Vault) bump()            { v.Version++ }
func (v *Vault) header() envelope {
	return envelope{id: v.Address, kind: types.RecordKindVault, version: v.Version}
}

func (g *Group) storeKey() []byte { return recordKey(g.Address) }
func (g *Group) bump()            { g.Version++ }
func (g *Group) header() envelope {
	return envelope{id: g.Address, kind: types.RecordKindMultisig, version: g.Version, owner: g.Payer}
}

func (s *Stats) storeKey() []byte { return recordKey(s.Address) }
func (s *Stats) bump()            { s.Version++ }
func (s *Stats) header() envelope {
	return envelope{id: s.Address, kind: s.kind, version: s.Version, owner: s.Owner}
}

func (b *Badge) storeKey() []byte { return recordKey(b.Address) }
func (b *Badge) bump()            { b.Version++ }
func (b *Badge) header() envelope {
	return envelope{id: b.Address, kind: types.RecordKindBadge, version: b.Version, owner: b.Owner}
}

func (r *Remittance) storeKey() []byte { return recordKey(r.Address) }
func (r *Remittance) bump()            { r.Version++ }
func (r *Remittance) header() envelope {
	return envelope{id: r.Address, kind: types.RecordKindRemittance, version: r.Version, owner: r.Sender}
}

func (m *Mint) storeKey() []byte { return recordKey(m.Address) }
func (m *Mint) bump()            { m.Version++ }
func (m *Mint) header() envelope {
	return envelope{id: m.Address, kind: types.RecordKindMint, version: m.Version, owner: m.Authority}
}

func (t *TokenAccount) storeKey() []byte { return recordKey(t.Address) }
func (t *TokenAccount) bump()            { t.Version++ }
func (t *TokenAccount) header() envelope {
	return envelope{id: t.Address, kind: types.RecordKindTokenAccount, version: t.Version, owner: t.Owner}
}

func (n *nativeAccount) storeKey() []byte { return nativeKey(n.owner) }
func (n *nativeAccount) bump()            { n.version++ }
func (n *nativeAccount) header() envelope {
	return envelope{id: n.owner, kind: types.RecordKindNativeAccount, version: n.version, owner: n.owner}
}
