package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	// snapshotMagic opens every uncompressed snapshot image.
	snapshotMagic = "BNDR"

	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 1
)

// snapshotEntry is one stored key and its envelope.
type snapshotEntry struct {
	key   []byte
	value []byte
}

// Snapshot exports every record and native balance.
// The image is zstd-compressed and carries a blake3 checksum, which is also returned.
func (l *Ledger) Snapshot() ([]byte, [32]byte, error) {
	l.mu.Lock()
	entries, err := collectEntries(l.backend)
	l.mu.Unlock()

	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("collect entries:\n%w", err)
	}

	raw, checksum := buildSnapshot(entries)

	compressed, err := compressSnapshot(raw)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("compress snapshot:\n%w", err)
	}

	return compressed, checksum, nil
}

// Restore replaces every record and native balance with the contents of a snapshot.
// It returns the snapshot checksum. A corrupt snapshot leaves the ledger untouched.
func (l *Ledger) Restore(data []byte) ([32]byte, error) {
	raw, err := decompressSnapshot(data)
	if err != nil {
		return [32]byte{}, withCause(ErrCorruptRecord, fmt.Errorf("decompress snapshot:\n%w", err))
	}

	entries, checksum, err := parseSnapshot(raw)
	if err != nil {
		return [32]byte{}, withCause(ErrCorruptRecord, err)
	}

	err = l.apply(OpRestore, func(t *tx) error {
		current, err := collectEntries(t.backend)
		if err != nil {
			return withCause(ErrStore, err)
		}

		for _, e := range current {
			t.del(e.key)
		}
		for _, e := range entries {
			t.put(e.key, e.value)
		}

		return nil
	})

	return checksum, err
}

// errStop ends an iteration early.
var errStop = errors.New("stop")

// Empty reports whether the store holds no ledger state.
func (l *Ledger) Empty() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, prefix := range [][]byte{prefixNative, prefixRecord} {
		err := l.backend.IteratePrefix(prefix, func(key, value []byte) error {
			return errStop
		})
		if errors.Is(err, errStop) {
			return false, nil
		}
		if err != nil {
			return false, withCause(ErrStore, err)
		}
	}

	return true, nil
}

// collectEntries reads every ledger key in key order.
func collectEntries(backend Backend) ([]snapshotEntry, error) {
	var entries []snapshotEntry

	for _, prefix := range [][]byte{prefixNative, prefixRecord} {
		err := backend.IteratePrefix(prefix, func(key, value []byte) error {
			// Copy key and value to avoid iterator invalidation
			entries = append(entries, snapshotEntry{
				key:   bytes.Clone(key),
				value: bytes.Clone(value),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// buildSnapshot frames entries and appends their checksum.
// Format: magic + u32 version + u32 count + entries (u32 key_len + key + u32 value_len + value) + checksum.
func buildSnapshot(entries []snapshotEntry) ([]byte, [32]byte) {
	buf := []byte(snapshotMagic)
	buf = binary.LittleEndian.AppendUint32(buf, snapshotVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(entries)))

	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.key)))
		buf = append(buf, e.key...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.value)))
		buf = append(buf, e.value...)
	}

	checksum := blake3.Sum256(buf)

	return append(buf, checksum[:]...), checksum
}

// parseSnapshot verifies the checksum and decodes the entries of an uncompressed image.
func parseSnapshot(raw []byte) ([]snapshotEntry, [32]byte, error) {
	var checksum [32]byte

	if len(raw) < len(snapshotMagic)+8+32 {
		return nil, checksum, fmt.Errorf("snapshot too short: %d bytes", len(raw))
	}

	body := raw[:len(raw)-32]
	copy(checksum[:], raw[len(raw)-32:])

	if blake3.Sum256(body) != checksum {
		return nil, checksum, fmt.Errorf("checksum mismatch")
	}

	if string(body[:len(snapshotMagic)]) != snapshotMagic {
		return nil, checksum, fmt.Errorf("bad magic")
	}
	body = body[len(snapshotMagic):]

	d := decoder{buf: body}
	version := binary.LittleEndian.Uint32(d.take(4))
	if version != snapshotVersion {
		return nil, checksum, fmt.Errorf("unsupported snapshot version %d", version)
	}

	count := binary.LittleEndian.Uint32(d.take(4))
	entries := make([]snapshotEntry, 0, min(int(count), len(d.buf)/8))

	for i := uint32(0); i < count && d.err == nil; i++ {
		key := d.bytes()
		value := d.bytes()
		if d.err != nil {
			break
		}

		if !bytes.HasPrefix(key, prefixRecord) && !bytes.HasPrefix(key, prefixNative) {
			return nil, checksum, fmt.Errorf("entry %d has foreign key %q", i, key)
		}
		if _, err := decodeEnvelope(value); err != nil {
			return nil, checksum, fmt.Errorf("entry %d:\n%w", i, err)
		}

		entries = append(entries, snapshotEntry{key: bytes.Clone(key), value: bytes.Clone(value)})
	}

	if err := d.finish(); err != nil {
		return nil, checksum, err
	}

	return entries, checksum, nil
}

// compressSnapshot compresses snapshot data using zstd.
func compressSnapshot(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// decompressSnapshot decompresses zstd-compressed snapshot data.
func decompressSnapshot(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
