package store

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
)

// NewTestStore returns a migrated in-memory store closed at test cleanup.
func NewTestStore(t testing.TB) *SqlStore {
	t.Helper()

	s, err := Open(context.Background(), InmemPath, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NewTestCipher returns a cipher with a freshly generated key.
func NewTestCipher(t testing.TB) *Cipher {
	t.Helper()

	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("building cipher: %v", err)
	}
	return c
}
