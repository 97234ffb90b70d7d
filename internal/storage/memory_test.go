package storage

import (
	"context"
	"testing"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := kv.Write(ctx, "k", payload{Name: "spy", Count: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got payload
	found, err := kv.Get(ctx, "k", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("key should be present")
	}
	if got.Name != "spy" || got.Count != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}

	if err := kv.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if found, _ := kv.Get(ctx, "k", &got); found {
		t.Fatal("key should be gone after remove")
	}
}

func TestMemoryGetMissing(t *testing.T) {
	var out []string
	found, err := NewMemory().Get(context.Background(), "absent", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("missing key must report not found")
	}
}
