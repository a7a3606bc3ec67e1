package address

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58/base58"
	"github.com/zeebo/blake3"
)

const (
	// Size is the byte length of keys, addresses and proofs.
	Size = 32

	// deriveContext is the blake3 derive-key context for record addresses.
	deriveContext = "bondr 2026-01 record address v1"

	// proofContext is the blake3 derive-key context for derivation proof keys.
	proofContext = "bondr 2026-01 derivation proof v1"
)

// Tag separates the address space of each record family.
type Tag string

// Record family tags. Every family uses its own tag so addresses never collide across families.
const (
	TagEscrow       Tag = "escrow"
	TagVault        Tag = "vault"
	TagMultisig     Tag = "client_multisig"
	TagStats        Tag = "user_stats"
	TagRemitStats   Tag = "remit_stats"
	TagBadge        Tag = "badge"
	TagRemittance   Tag = "remittance"
	TagMint         Tag = "mint"
	TagTokenAccount Tag = "token_account"
)

// Key is a participant's Ed25519 public key.
type Key [Size]byte

// Address is a derived record address.
type Address [Size]byte

// Proof binds an address to the seed material it was derived from.
type Proof [Size]byte

// Derive computes the address and derivation proof for a (tag, keys, nonce) tuple.
// The result depends only on its inputs, so any caller can recompute it.
func Derive(tag Tag, keys []Key, nonce uint64) (Address, Proof) {
	material := encodeSeeds(tag, keys, nonce)

	var addr Address
	blake3.DeriveKey(deriveContext, material, addr[:])

	return addr, proofFor(tag, addr, material)
}

// Verify reports whether addr and proof were derived from (tag, keys, nonce).
func Verify(tag Tag, keys []Key, nonce uint64, addr Address, proof Proof) bool {
	wantAddr, wantProof := Derive(tag, keys, nonce)
	return wantAddr == addr && wantProof == proof
}

// proofFor computes a keyed blake3 hash of the seed material.
// The key is itself derived from the tag and the address.
func proofFor(tag Tag, addr Address, material []byte) Proof {
	var key [Size]byte
	blake3.DeriveKey(proofContext+"/"+string(tag), addr[:], key[:])

	// NewKeyed only fails on a key that is not 32 bytes.
	h, _ := blake3.NewKeyed(key[:])
	_, _ = h.Write(material)

	var p Proof
	h.Sum(p[:0])

	return p
}

// encodeSeeds builds the unambiguous derivation input.
// Format: u8 tag_len + tag + u8 key_count + keys (32 bytes each) + u64 nonce (LE).
func encodeSeeds(tag Tag, keys []Key, nonce uint64) []byte {
	buf := make([]byte, 0, 1+len(tag)+1+len(keys)*Size+8)

	buf = append(buf, byte(len(tag)))
	buf = append(buf, tag...)
	buf = append(buf, byte(len(keys)))

	for _, k := range keys {
		buf = append(buf, k[:]...)
	}

	return binary.LittleEndian.AppendUint64(buf, nonce)
}

// Escrow returns the escrow record address for a payer, recipient and reference nonce.
func Escrow(payer, recipient Key, nonce uint64) (Address, Proof) {
	return Derive(TagEscrow, []Key{payer, recipient}, nonce)
}

// Vault returns the vault address paired with the escrow of the same inputs.
func Vault(payer, recipient Key, nonce uint64) (Address, Proof) {
	return Derive(TagVault, []Key{payer, recipient}, nonce)
}

// Multisig returns the approval group address of a payer.
func Multisig(payer Key) (Address, Proof) {
	return Derive(TagMultisig, []Key{payer}, 0)
}

// Stats returns the activity stats address of a participant.
func Stats(owner Key) (Address, Proof) {
	return Derive(TagStats, []Key{owner}, 0)
}

// RemitStats returns the remittance activity address of a sender.
func RemitStats(owner Key) (Address, Proof) {
	return Derive(TagRemitStats, []Key{owner}, 0)
}

// Badge returns the reputation badge address of a recipient.
func Badge(owner Key) (Address, Proof) {
	return Derive(TagBadge, []Key{owner}, 0)
}

// Remittance returns the remittance record address for a sender, receiver and seed.
func Remittance(sender, receiver Key, seed uint64) (Address, Proof) {
	return Derive(TagRemittance, []Key{sender, receiver}, seed)
}

// Mint returns the address of a token mint created by authority.
func Mint(authority Key, nonce uint64) (Address, Proof) {
	return Derive(TagMint, []Key{authority}, nonce)
}

// TokenAccount returns the token account address of owner for mint.
func TokenAccount(owner Key, mint Address) (Address, Proof) {
	return Derive(TagTokenAccount, []Key{owner, Key(mint)}, 0)
}

// IsZero reports whether the key is all zeros.
func (k Key) IsZero() bool {
	return k == Key{}
}

// String returns the base58 form of the key.
func (k Key) String() string {
	return base58.Encode(k[:])
}

// Short returns a truncated form for log lines.
func (k Key) Short() string {
	return short(k.String())
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	b, err := decode32(string(text))
	if err != nil {
		return fmt.Errorf("parse key:\n%w", err)
	}
	*k = Key(b)
	return nil
}

// ParseKey decodes a base58 key.
func ParseKey(s string) (Key, error) {
	var k Key
	err := k.UnmarshalText([]byte(s))
	return k, err
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the base58 form of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Short returns a truncated form for log lines.
func (a Address) Short() string {
	return short(a.String())
}

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	b, err := decode32(string(text))
	if err != nil {
		return fmt.Errorf("parse address:\n%w", err)
	}
	*a = Address(b)
	return nil
}

// Parse decodes a base58 address.
func Parse(s string) (Address, error) {
	var a Address
	err := a.UnmarshalText([]byte(s))
	return a, err
}

// String returns the base58 form of the proof.
func (p Proof) String() string {
	return base58.Encode(p[:])
}

// MarshalText implements encoding.TextMarshaler.
func (p Proof) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Proof) UnmarshalText(text []byte) error {
	b, err := decode32(string(text))
	if err != nil {
		return fmt.Errorf("parse proof:\n%w", err)
	}
	*p = Proof(b)
	return nil
}

// decode32 decodes base58 text that must hold exactly 32 bytes.
func decode32(s string) ([Size]byte, error) {
	var out [Size]byte

	raw, err := base58.Decode(s)
	if err != nil {
		return out, err
	}

	if len(raw) != Size {
		return out, fmt.Errorf("invalid length: got %d, want %d", len(raw), Size)
	}

	copy(out[:], raw)

	return out, nil
}

func short(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
