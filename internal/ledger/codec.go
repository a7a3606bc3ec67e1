package ledger

import (
	"encoding/binary"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"Bondr/internal/address"
	"Bondr/internal/types"
)

// envelope is a decoded record table.
type envelope struct {
	id      [32]byte
	kind    types.RecordKind
	version uint64
	owner   address.Key
	content []byte
}

// encodeEnvelope builds the FlatBuffers Record table for a record body.
func encodeEnvelope(env envelope) []byte {
	builder := flatbuffers.NewBuilder(128 + len(env.content))

	idVec := builder.CreateByteVector(env.id[:])
	ownerVec := builder.CreateByteVector(env.owner[:])
	contentVec := builder.CreateByteVector(env.content)

	types.RecordStart(builder)
	types.RecordAddId(builder, idVec)
	types.RecordAddKind(builder, env.kind)
	types.RecordAddVersion(builder, env.version)
	types.RecordAddOwner(builder, ownerVec)
	types.RecordAddContent(builder, contentVec)
	offset := types.RecordEnd(builder)

	builder.Finish(offset)

	return builder.FinishedBytes()
}

// decodeEnvelope parses a stored Record table.
func decodeEnvelope(data []byte) (env envelope, retErr error) {
	// FlatBuffers panics on malformed data
	defer func() {
		if r := recover(); r != nil {
			retErr = withDetail(ErrCorruptRecord, "malformed envelope")
		}
	}()

	if len(data) < 8 {
		return env, withDetail(ErrCorruptRecord, "envelope too short")
	}

	rec := types.GetRootAsRecord(data, 0)

	id := rec.IdBytes()
	owner := rec.OwnerBytes()
	if len(id) != 32 || len(owner) != 32 {
		return env, withDetail(ErrCorruptRecord, "invalid id or owner length")
	}

	copy(env.id[:], id)
	copy(env.owner[:], owner)
	env.kind = rec.Kind()
	env.version = rec.Version()
	env.content = append([]byte(nil), rec.ContentBytes()...)

	return env, nil
}

// encoder writes a little-endian Borsh-style body.
type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) u64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) fixed(v [32]byte) {
	e.buf = append(e.buf, v[:]...)
}

func (e *encoder) str(s string) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// optAddress writes Option<[u8; 32]>: a presence byte then the value.
func (e *encoder) optAddress(a *address.Address) {
	if a == nil {
		e.u8(0)
		return
	}
	e.u8(1)
	e.fixed(*a)
}

func (e *encoder) asset(a Asset) {
	e.u8(uint8(a.Kind))
	e.fixed(a.Mint)
	e.u8(a.Decimals)
}

// decoder reads a body written by encoder.
// The first short read sets err; later reads return zero values.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = fmt.Errorf("short body: need %d bytes, have %d", n, len(d.buf))
		return nil
	}
	out := d.buf[:n]
	d.buf = d.buf[n:]
	return out
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) boolean() bool {
	return d.u8() == 1
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) fixed() [32]byte {
	var out [32]byte
	if b := d.take(32); b != nil {
		copy(out[:], b)
	}
	return out
}

// bytes reads a u32 length-prefixed byte string.
func (d *decoder) bytes() []byte {
	b := d.take(4)
	if b == nil {
		return nil
	}
	return d.take(int(binary.LittleEndian.Uint32(b)))
}

func (d *decoder) str() string {
	return string(d.bytes())
}

func (d *decoder) optAddress() *address.Address {
	if !d.boolean() {
		return nil
	}
	a := address.Address(d.fixed())
	return &a
}

func (d *decoder) asset() Asset {
	return Asset{
		Kind:     AssetKind(d.u8()),
		Mint:     address.Address(d.fixed()),
		Decimals: d.u8(),
	}
}

// finish reports a short or oversized body.
func (d *decoder) finish() error {
	if d.err != nil {
		return withCause(ErrCorruptRecord, d.err)
	}
	if len(d.buf) != 0 {
		return withDetail(ErrCorruptRecord, "%d trailing bytes", len(d.buf))
	}
	return nil
}
