package tx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/zeebo/blake3"

	"Bondr/internal/address"
)

const (
	// SignatureSize is the size of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize

	// maxOpLen bounds the operation name.
	maxOpLen = 64

	// MaxEnvelopeSize is the largest accepted encoded envelope.
	MaxEnvelopeSize = 64 << 10
)

// Signature is an Ed25519 signature, base58 in text form.
type Signature [SignatureSize]byte

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(base58.Encode(s[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(text []byte) error {
	raw, err := base58.Decode(string(text))
	if err != nil {
		return fmt.Errorf("parse signature:\n%w", err)
	}
	if len(raw) != SignatureSize {
		return fmt.Errorf("invalid signature size: got %d, want %d", len(raw), SignatureSize)
	}
	copy(s[:], raw)
	return nil
}

// Envelope is a signed operation request.
// The signer's key is the caller identity for the operation.
type Envelope struct {
	Op        string          `json:"op"`
	Signer    address.Key     `json:"signer"`
	Expires   int64           `json:"expires"` // Expires is a unix time in seconds
	Nonce     uint64          `json:"nonce"`   // Nonce keeps otherwise identical envelopes distinct
	Args      json.RawMessage `json:"args"`
	Signature Signature       `json:"signature"`
}

// Sign builds an envelope for op with JSON-encoded args, valid until expires.
func Sign(priv ed25519.PrivateKey, op string, args any, expires time.Time) (*Envelope, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args:\n%w", err)
	}

	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce:\n%w", err)
	}

	env := &Envelope{
		Op:      op,
		Expires: expires.Unix(),
		Nonce:   binary.LittleEndian.Uint64(nonce[:]),
		Args:    raw,
	}
	copy(env.Signer[:], priv.Public().(ed25519.PublicKey))

	hash := env.Hash()
	copy(env.Signature[:], ed25519.Sign(priv, hash[:]))

	return env, nil
}

// Hash returns blake3 of the unsigned envelope.
func (e *Envelope) Hash() [32]byte {
	return blake3.Sum256(e.unsignedBytes())
}

// unsignedBytes is the canonical signing input.
// Format: u8 op_len + op + signer (32 bytes) + i64 expires (LE) + u64 nonce (LE) + u32 args_len + args.
func (e *Envelope) unsignedBytes() []byte {
	buf := make([]byte, 0, 1+len(e.Op)+address.Size+8+8+4+len(e.Args))

	buf = append(buf, byte(len(e.Op)))
	buf = append(buf, e.Op...)
	buf = append(buf, e.Signer[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Expires))
	buf = binary.LittleEndian.AppendUint64(buf, e.Nonce)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Args)))

	return append(buf, e.Args...)
}

// Verify checks field sizes, expiry at now and the signature.
func (e *Envelope) Verify(now time.Time) error {
	if len(e.Op) == 0 {
		return fmt.Errorf("empty op")
	}
	if len(e.Op) > maxOpLen {
		return fmt.Errorf("op name too long: %d bytes", len(e.Op))
	}
	if e.Signer.IsZero() {
		return fmt.Errorf("missing signer")
	}
	if now.Unix() > e.Expires {
		return fmt.Errorf("envelope expired at %d", e.Expires)
	}

	hash := e.Hash()
	if !ed25519.Verify(e.Signer[:], hash[:], e.Signature[:]) {
		return fmt.Errorf("invalid signature")
	}

	return nil
}

// Decode parses a JSON envelope.
func Decode(data []byte) (*Envelope, error) {
	if len(data) > MaxEnvelopeSize {
		return nil, fmt.Errorf("envelope too large: %d bytes", len(data))
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope:\n%w", err)
	}

	return &env, nil
}

// DecodeArgs unmarshals the envelope arguments into v.
func (e *Envelope) DecodeArgs(v any) error {
	if len(e.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Args, v); err != nil {
		return fmt.Errorf("decode %s args:\n%w", e.Op, err)
	}
	return nil
}
