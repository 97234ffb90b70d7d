package settings

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"flow-alerts/internal/storage"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	got, err := Load(context.Background(), storage.NewMemory())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Enabled {
		t.Fatal("defaults should be enabled")
	}
	if !got.ValueThreshold.Equal(decimal.NewFromInt(800000)) {
		t.Fatalf("default threshold = %s", got.ValueThreshold)
	}
	if got.MaxExp != 365 {
		t.Fatalf("default max expiry = %d", got.MaxExp)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	s := Defaults()
	s.AlertSound = true
	s.ValueThreshold = decimal.NewFromInt(500000)
	s.MinExp = 7

	if err := Save(ctx, kv, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(ctx, kv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.AlertSound || got.MinExp != 7 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.ValueThreshold.Equal(decimal.NewFromInt(500000)) {
		t.Fatalf("threshold = %s", got.ValueThreshold)
	}
}
