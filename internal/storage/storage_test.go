package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestStorage creates a temporary storage for testing.
func newTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	s, err := New(filepath.Join(dir, "db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to create storage: %v", err)
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(dir)
	}

	return s, cleanup
}

// put writes key=value in a single-op batch.
func put(t *testing.T, s *Storage, key, value string) {
	t.Helper()

	if err := s.Apply([]Op{{Key: []byte(key), Value: []byte(value)}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
}

func TestApplyAndGet(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	key := []byte("test-key")
	value := []byte("test-value")

	put(t, s, string(key), string(value))

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestGetNonExistent(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	got, err := s.Get([]byte("non-existent"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("Get returned %q, want nil", got)
	}

	ok, err := s.Has([]byte("non-existent"))
	if err != nil || ok {
		t.Errorf("Has = %v, %v; want false, nil", ok, err)
	}
}

func TestApplyMixesSetsAndDeletes(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	put(t, s, "a:old", "1")

	ops := []Op{
		{Key: []byte("a:old")},
		{Key: []byte("a:new"), Value: []byte("2")},
		{Key: []byte("a:empty"), Value: []byte{}},
	}
	if err := s.Apply(ops); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if v, _ := s.Get([]byte("a:old")); v != nil {
		t.Errorf("a:old should be deleted, got %q", v)
	}
	if v, _ := s.Get([]byte("a:new")); !bytes.Equal(v, []byte("2")) {
		t.Errorf("a:new = %q, want 2", v)
	}
	if ok, _ := s.Has([]byte("a:empty")); !ok {
		t.Errorf("empty value should be stored, not deleted")
	}
}

func TestIteratePrefix(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	for _, k := range []string{"a:1", "a:2", "b:1", "a:3"} {
		put(t, s, k, k)
	}

	var keys []string
	err := s.IteratePrefix([]byte("a:"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePrefix failed: %v", err)
	}

	want := []string{"a:1", "a:2", "a:3"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestIteratePrefixStopsOnError(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	put(t, s, "x:1", "1")
	put(t, s, "x:2", "2")

	stop := errors.New("stop")
	calls := 0

	err := s.IteratePrefix([]byte("x:"), func(_, _ []byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("IteratePrefix returned %v, want stop", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	cases := []struct {
		in, want []byte
	}{
		{[]byte("a:"), []byte("a;")},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0xFF, 0xFF}, nil},
	}

	for _, c := range cases {
		got := prefixUpperBound(c.in)
		if !bytes.Equal(got, c.want) {
			t.Errorf("prefixUpperBound(%x) = %x, want %x", c.in, got, c.want)
		}
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	put(t, s, "k", "v")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, _ := s.Get([]byte("k"))
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("after reopen got %q, want v", got)
	}
}
