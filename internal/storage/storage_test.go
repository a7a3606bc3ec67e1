package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

// newTestStorage creates a temporary Pebble storage for testing.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	t.Cleanup(func() { s.Close() })

	return s
}

// backend is the subset of behavior shared by Storage and Memory.
type backend interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Apply(muts []Mutation) error
	IteratePrefix(prefix []byte, fn func(key, value []byte) error) error
}

func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Run("pebble", func(t *testing.T) { fn(t, newTestStorage(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

func TestSetAndGet(t *testing.T) {
	s := newTestStorage(t)

	key := []byte("test-key")
	value := []byte("test-value")

	if err := s.Set(key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestGetNonExistent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		got, err := b.Get([]byte("non-existent"))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if got != nil {
			t.Errorf("Get returned %q, want nil", got)
		}

		ok, err := b.Has([]byte("non-existent"))
		if err != nil || ok {
			t.Errorf("Has = %v, %v; want false, nil", ok, err)
		}
	})
}

func TestApplyMixedBatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		if err := b.Apply([]Mutation{
			{Key: []byte("a"), Value: []byte("1")},
			{Key: []byte("b"), Value: []byte("2")},
		}); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		if err := b.Apply([]Mutation{
			{Key: []byte("a"), Delete: true},
			{Key: []byte("b"), Value: []byte("3")},
			{Key: []byte("c"), Value: []byte("4")},
		}); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		if got, _ := b.Get([]byte("a")); got != nil {
			t.Errorf("a should be deleted, got %q", got)
		}

		if got, _ := b.Get([]byte("b")); !bytes.Equal(got, []byte("3")) {
			t.Errorf("b = %q, want 3", got)
		}

		if ok, _ := b.Has([]byte("c")); !ok {
			t.Error("c should exist")
		}
	})
}

func TestIteratePrefixOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		_ = b.Apply([]Mutation{
			{Key: []byte("e:2"), Value: []byte("x")},
			{Key: []byte("e:1"), Value: []byte("y")},
			{Key: []byte("f:1"), Value: []byte("z")},
			{Key: []byte("d:9"), Value: []byte("w")},
		})

		var keys []string
		err := b.IteratePrefix([]byte("e:"), func(key, _ []byte) error {
			keys = append(keys, string(key))
			return nil
		})
		if err != nil {
			t.Fatalf("IteratePrefix failed: %v", err)
		}

		if len(keys) != 2 || keys[0] != "e:1" || keys[1] != "e:2" {
			t.Errorf("keys = %v, want [e:1 e:2]", keys)
		}
	})
}

func TestIterateStopsOnError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		_ = b.Apply([]Mutation{
			{Key: []byte("k1"), Value: []byte("1")},
			{Key: []byte("k2"), Value: []byte("2")},
		})

		stop := errors.New("stop")
		calls := 0

		err := b.IteratePrefix(nil, func(_, _ []byte) error {
			calls++
			return stop
		})

		if !errors.Is(err, stop) || calls != 1 {
			t.Errorf("err=%v calls=%d, want stop after 1 call", err, calls)
		}
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	s, err := Open(path, Options{SyncWrites: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Apply([]Mutation{{Key: []byte("persist"), Value: []byte("yes")}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.Get([]byte("persist"))
	if err != nil || !bytes.Equal(got, []byte("yes")) {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	cases := []struct {
		in   []byte
		want []byte
	}{
		{[]byte("e:"), []byte("e;")},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0xFF, 0xFF}, nil},
	}

	for _, c := range cases {
		if got := prefixUpperBound(c.in); !bytes.Equal(got, c.want) {
			t.Errorf("prefixUpperBound(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
