package kv

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	testStoreRoundTrip(t, s)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	redis := miniredis.RunT(t)
	s, err := NewRedisStore(redis.Addr(), "", "mistakebook-test")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	testStoreRoundTrip(t, s)
}

func testStoreRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "documents"); err != nil || ok {
		t.Fatalf("fresh key: ok=%v err=%v, want absent", ok, err)
	}

	blob := []byte(`{"schemaVersion":1,"items":[]}`)
	if err := s.Set(ctx, "documents", blob); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := s.Get(ctx, "documents")
	if err != nil || !ok {
		t.Fatalf("get after set: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("get = %q, want %q", got, blob)
	}

	// Overwrite replaces, never appends.
	next := []byte(`{"schemaVersion":1,"items":[{"fingerprint":"abc"}]}`)
	if err := s.Set(ctx, "documents", next); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = s.Get(ctx, "documents")
	if !bytes.Equal(got, next) {
		t.Fatalf("after overwrite = %q, want %q", got, next)
	}
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	if err := s.Set(ctx, "review/logs", []byte("x")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := s.Get(ctx, "review/logs")
	if err != nil || !ok || string(got) != "x" {
		t.Fatalf("get = %q ok=%v err=%v", got, ok, err)
	}
}
