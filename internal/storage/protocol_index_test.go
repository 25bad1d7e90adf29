package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestIndex(t *testing.T) *ProtocolIndex {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProtocolIndex(NewRedisCacheWithClient(client))
}

func TestProtocolIndexSetAndGet(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	contract := "0xABCDEF0000000000000000000000000000000001"
	if err := idx.Set(ctx, contract, "proto-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Lookups are case-insensitive: the index stores lowercased addresses.
	id, err := idx.Get(ctx, "0xabcdef0000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if id != "proto-1" {
		t.Errorf("Get() = %q, want %q", id, "proto-1")
	}
}

func TestProtocolIndexMissReturnsEmpty(t *testing.T) {
	idx := newTestIndex(t)

	id, err := idx.Get(context.Background(), "0x0000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if id != "" {
		t.Errorf("expected empty ID on miss, got %q", id)
	}
}

func TestProtocolIndexDelete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	contract := "0xabcdef0000000000000000000000000000000002"
	if err := idx.Set(ctx, contract, "proto-2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := idx.Delete(ctx, contract); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	id, err := idx.Get(ctx, contract)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if id != "" {
		t.Errorf("expected empty ID after delete, got %q", id)
	}
}
