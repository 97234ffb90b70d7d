package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flow-alerts/internal/cache"
	"flow-alerts/internal/model"
	"flow-alerts/internal/scheduler"
	"flow-alerts/internal/settings"
	"flow-alerts/internal/storage"
	"flow-alerts/internal/timeparse"
)

type testHarness struct {
	engine  *Engine
	clock   *scheduler.Manual
	cache   *cache.Cache
	fired   []model.GroupKey
	expired []string
}

func newHarness(t *testing.T, opts Options) *testHarness {
	t.Helper()
	return newHarnessOn(t, opts, storage.NewMemory())
}

func newHarnessOn(t *testing.T, opts Options, kv storage.KV) *testHarness {
	t.Helper()
	clock := scheduler.NewManual(time.Date(2024, time.April, 10, 10, 0, 0, 0, time.UTC))
	c := cache.New(kv, zerolog.Nop())
	resolver := timeparse.NewResolver(timeparse.ResolverOptions{
		Now:      clock.Now,
		Location: time.UTC,
	})
	h := &testHarness{clock: clock, cache: c}
	h.engine = New(c, resolver, clock, opts, Sinks{
		Evaluate:      func(key model.GroupKey) { h.fired = append(h.fired, key) },
		ExpirePending: func(hint string) { h.expired = append(h.expired, hint) },
	}, zerolog.Nop())
	return h
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func makeRecord(symbol string, price, totalValue string) model.Record {
	rec := model.Record{
		Time:       570,
		ExpiryDate: "17 Apr",
		Strike:     dec("200"),
		Side:       model.SideCall,
		Size:       dec("10"),
		Price:      dec(price),
		TotalValue: dec(totalValue),
		Reason:     "SWEEP",
		Symbol:     symbol,
	}
	rec.ID = rec.ComputeID()
	return rec
}

func TestThresholdCrossProducesOneAlertPass(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	for _, price := range []string{"3.0", "3.1", "3.2"} {
		if err := h.engine.Offer(ctx, makeRecord("SPY", price, "300000"), ""); err != nil {
			t.Fatalf("Offer: %v", err)
		}
	}

	h.clock.Advance(2 * time.Second)
	if len(h.fired) != 1 {
		t.Fatalf("expected 1 evaluation request, got %d", len(h.fired))
	}

	matching, total, fired := h.engine.Evaluate(ctx, h.fired[0])
	if !fired {
		t.Fatal("expected the group to fire")
	}
	if len(matching) != 3 {
		t.Fatalf("expected 3 matching records, got %d", len(matching))
	}
	if !total.Equal(dec("900000")) {
		t.Fatalf("expected total 900000, got %s", total)
	}

	// All contributors are now marked shown; a re-evaluation finds nothing.
	_, total, fired = h.engine.Evaluate(ctx, h.fired[0])
	if fired || !total.IsZero() {
		t.Fatalf("re-evaluation should be inert, got fired=%v total=%s", fired, total)
	}
}

func TestBurstCollapsesToOneEvaluation(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		rec := makeRecord("SPY", "3.0", "100000")
		rec.Size = dec("10").Add(decimal.NewFromInt(int64(i)))
		rec.ID = rec.ComputeID()
		if err := h.engine.Offer(ctx, rec, ""); err != nil {
			t.Fatalf("Offer %d: %v", i, err)
		}
		h.clock.Advance(100 * time.Millisecond)
	}

	h.clock.Advance(2 * time.Second)
	if len(h.fired) != 1 {
		t.Fatalf("expected the burst to collapse to 1 evaluation, got %d", len(h.fired))
	}
}

func TestAdmissionRejections(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*model.Record)
		want   error
	}{
		{"fractional size", func(r *model.Record) { r.Size = dec("2.5") }, ErrFractionalSize},
		{"strike off grid", func(r *model.Record) { r.Strike = dec("150.37") }, ErrStrikeTick},
		{"strike below minimum", func(r *model.Record) { r.Strike = dec("50") }, ErrStrikeOutOfRange},
		{"strike above maximum", func(r *model.Record) { r.Strike = dec("900") }, ErrStrikeOutOfRange},
		{"unknown side", func(r *model.Record) { r.Side = model.SideUnknown }, ErrUnknownSide},
		{"expired contract", func(r *model.Record) { r.ExpiryDate = "1 Jan 2020" }, ErrExpiryOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := makeRecord("SPY", "3.0", "300000")
			tc.mutate(&rec)
			rec.ID = rec.ComputeID()
			if err := h.engine.Offer(ctx, rec, ""); !errors.Is(err, tc.want) {
				t.Fatalf("Offer = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestHalfPointStrikeAccepted(t *testing.T) {
	h := newHarness(t, Options{})

	rec := makeRecord("SPY", "3.0", "300000")
	rec.Strike = dec("150.5")
	rec.ID = rec.ComputeID()
	if err := h.engine.Offer(context.Background(), rec, ""); err != nil {
		t.Fatalf("Offer: %v", err)
	}
}

func TestExpiryLabelParseFailure(t *testing.T) {
	h := newHarness(t, Options{})

	rec := makeRecord("SPY", "3.0", "300000")
	rec.ExpiryDate = "31 Feb 2024"
	rec.ID = rec.ComputeID()

	var ferr *timeparse.FormatError
	if err := h.engine.Offer(context.Background(), rec, ""); !errors.As(err, &ferr) {
		t.Fatalf("Offer = %v, want *timeparse.FormatError", err)
	}
}

func TestDuplicateRecordDropped(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	first := makeRecord("SPY", "3.0", "300000")
	if err := h.engine.Offer(ctx, first, ""); err != nil {
		t.Fatalf("first Offer: %v", err)
	}

	// Same economics later in the session: same identity, dropped.
	dup := makeRecord("SPY", "3.0", "300000")
	dup.Time = 612
	if err := h.engine.Offer(ctx, dup, ""); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate Offer = %v, want ErrDuplicate", err)
	}
	if h.cache.Len() != 1 {
		t.Fatalf("cache should hold 1 record, got %d", h.cache.Len())
	}
}

func TestDisabledRejectsEverything(t *testing.T) {
	h := newHarness(t, Options{})
	s := settings.Defaults()
	s.Enabled = false
	h.engine.ApplySettings(s)

	if err := h.engine.Offer(context.Background(), makeRecord("SPY", "3.0", "300000"), ""); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Offer = %v, want ErrDisabled", err)
	}
}

func TestBelowThresholdDoesNotFire(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	for _, price := range []string{"3.0", "3.1"} {
		if err := h.engine.Offer(ctx, makeRecord("SPY", price, "250000"), ""); err != nil {
			t.Fatalf("Offer: %v", err)
		}
	}
	h.clock.Advance(2 * time.Second)

	matching, total, fired := h.engine.Evaluate(ctx, h.fired[0])
	if fired {
		t.Fatalf("500000 should not cross 800000, matched %d for %s", len(matching), total)
	}
}

func TestSingleEntryDoesNotFire(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	if err := h.engine.Offer(ctx, makeRecord("SPY", "9.0", "900001"), ""); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	h.clock.Advance(2 * time.Second)

	if _, _, fired := h.engine.Evaluate(ctx, h.fired[0]); fired {
		t.Fatal("a single record must not fire regardless of value")
	}
}

func TestLaterAlertCoversOnlyFreshEntries(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	for _, price := range []string{"3.0", "3.1", "3.2"} {
		if err := h.engine.Offer(ctx, makeRecord("SPY", price, "300000"), ""); err != nil {
			t.Fatalf("Offer: %v", err)
		}
	}
	h.clock.Advance(2 * time.Second)
	if _, _, fired := h.engine.Evaluate(ctx, h.fired[0]); !fired {
		t.Fatal("initial burst should fire")
	}

	for _, price := range []string{"4.0", "4.1"} {
		if err := h.engine.Offer(ctx, makeRecord("SPY", price, "500000"), ""); err != nil {
			t.Fatalf("Offer: %v", err)
		}
	}
	h.clock.Advance(2 * time.Second)

	matching, total, fired := h.engine.Evaluate(ctx, h.fired[len(h.fired)-1])
	if !fired {
		t.Fatal("second burst should fire")
	}
	if len(matching) != 2 {
		t.Fatalf("only the 2 fresh records should match, got %d", len(matching))
	}
	if !total.Equal(dec("1000000")) {
		t.Fatalf("expected total 1000000, got %s", total)
	}
}

func TestPendingSymbolResolution(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	parked := makeRecord(model.SymbolUnknown, "3.0", "500000")
	if err := h.engine.Offer(ctx, parked, "row-7"); !errors.Is(err, ErrResolutionPending) {
		t.Fatalf("Offer = %v, want ErrResolutionPending", err)
	}
	if h.engine.PendingCount() != 1 {
		t.Fatalf("expected 1 parked record, got %d", h.engine.PendingCount())
	}

	if !h.engine.Resolve(ctx, "row-7", "TSLA") {
		t.Fatal("Resolve should find the parked record")
	}
	if err := h.engine.Offer(ctx, makeRecord("TSLA", "3.5", "400000"), ""); err != nil {
		t.Fatalf("Offer: %v", err)
	}

	h.clock.Advance(2 * time.Second)
	matching, total, fired := h.engine.Evaluate(ctx, model.GroupKey{Symbol: "TSLA", ExpiryDate: "17 Apr", Side: model.SideCall})
	if !fired {
		t.Fatal("resolved record should contribute to its group")
	}
	if len(matching) != 2 || !total.Equal(dec("900000")) {
		t.Fatalf("got %d records for %s, want 2 for 900000", len(matching), total)
	}
}

func TestPendingExpiry(t *testing.T) {
	h := newHarness(t, Options{PendingTimeout: 5 * time.Second})
	ctx := context.Background()

	if err := h.engine.Offer(ctx, makeRecord(model.SymbolUnknown, "3.0", "500000"), "row-9"); !errors.Is(err, ErrResolutionPending) {
		t.Fatalf("Offer = %v, want ErrResolutionPending", err)
	}

	h.clock.Advance(5 * time.Second)
	if len(h.expired) != 1 || h.expired[0] != "row-9" {
		t.Fatalf("expected expiry callback for row-9, got %v", h.expired)
	}
	if !h.engine.ExpirePending("row-9") {
		t.Fatal("ExpirePending should drop the parked record")
	}
	if h.engine.PendingCount() != 0 {
		t.Fatalf("expected no parked records, got %d", h.engine.PendingCount())
	}
	if h.engine.Resolve(ctx, "row-9", "TSLA") {
		t.Fatal("Resolve after expiry should be a no-op")
	}
}

func TestEvaluateSkipsUnknownSymbolGroup(t *testing.T) {
	h := newHarness(t, Options{})

	key := model.GroupKey{Symbol: model.SymbolUnknown, ExpiryDate: "17 Apr", Side: model.SideCall}
	if _, _, fired := h.engine.Evaluate(context.Background(), key); fired {
		t.Fatal("unresolved groups must never alert")
	}
}

func TestInitialCutoffDropsBacklog(t *testing.T) {
	h := newHarness(t, Options{InitialCutoff: true})
	ctx := context.Background()

	first := makeRecord("SPY", "3.0", "300000")
	first.Time = 570
	if err := h.engine.Offer(ctx, first, ""); err != nil {
		t.Fatalf("first Offer: %v", err)
	}

	stale := makeRecord("SPY", "3.1", "300000")
	stale.Time = 560
	if err := h.engine.Offer(ctx, stale, ""); !errors.Is(err, ErrBeforeCutoff) {
		t.Fatalf("stale Offer = %v, want ErrBeforeCutoff", err)
	}

	fresh := makeRecord("SPY", "3.2", "300000")
	fresh.Time = 580
	if err := h.engine.Offer(ctx, fresh, ""); err != nil {
		t.Fatalf("fresh Offer: %v", err)
	}
}

func TestResetCacheAllowsReplay(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	rec := makeRecord("SPY", "3.0", "300000")
	if err := h.engine.Offer(ctx, rec, ""); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	h.engine.ResetCache(ctx)
	if h.cache.Len() != 0 {
		t.Fatalf("cache should be empty after reset, got %d", h.cache.Len())
	}
	// Same record is admissible again after the periodic reset.
	if err := h.engine.Offer(ctx, rec, ""); err != nil {
		t.Fatalf("replay Offer: %v", err)
	}
}

func TestRestartRestoresDedupAndShownFlags(t *testing.T) {
	kv := storage.NewMemory()
	ctx := context.Background()

	first := newHarnessOn(t, Options{}, kv)
	for _, price := range []string{"3.0", "3.1"} {
		if err := first.engine.Offer(ctx, makeRecord("SPY", price, "600000"), ""); err != nil {
			t.Fatalf("Offer: %v", err)
		}
	}
	first.clock.Advance(2 * time.Second)
	if _, _, fired := first.engine.Evaluate(ctx, first.fired[0]); !fired {
		t.Fatal("expected the group to fire before restart")
	}

	second := newHarnessOn(t, Options{}, kv)
	if err := second.engine.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	// Rows already admitted before the restart stay deduplicated.
	replay := makeRecord("SPY", "3.0", "600000")
	if err := second.engine.Offer(ctx, replay, ""); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("replayed Offer = %v, want ErrDuplicate", err)
	}

	// Shown flags survive too: a lone fresh row cannot ride on the
	// already-alerted contributors to cross the threshold again.
	if err := second.engine.Offer(ctx, makeRecord("SPY", "3.5", "600000"), ""); err != nil {
		t.Fatalf("fresh Offer: %v", err)
	}
	second.clock.Advance(2 * time.Second)
	if len(second.fired) != 1 {
		t.Fatalf("expected 1 evaluation request, got %d", len(second.fired))
	}
	matching, _, fired := second.engine.Evaluate(ctx, second.fired[0])
	if fired {
		t.Fatal("a lone fresh row must not fire against restored entries")
	}
	if len(matching) != 1 {
		t.Fatalf("expected only the fresh row to match, got %d", len(matching))
	}
}

func TestRestoreSeedsCutoffFromRestoredEntries(t *testing.T) {
	kv := storage.NewMemory()
	ctx := context.Background()

	first := newHarnessOn(t, Options{InitialCutoff: true}, kv)
	if err := first.engine.Offer(ctx, makeRecord("SPY", "3.0", "300000"), ""); err != nil {
		t.Fatalf("Offer: %v", err)
	}

	second := newHarnessOn(t, Options{InitialCutoff: true}, kv)
	if err := second.engine.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	// The persisted form drops capture times, so restored entries resume the
	// watermark at zero: carried-over rows from before the boundary stay out,
	// while the replayed row itself is still caught by the dedup index.
	stale := makeRecord("SPY", "3.1", "300000")
	stale.Time = -30
	stale.ID = stale.ComputeID()
	if err := second.engine.Offer(ctx, stale, ""); !errors.Is(err, ErrBeforeCutoff) {
		t.Fatalf("stale Offer = %v, want ErrBeforeCutoff", err)
	}
	fresh := makeRecord("SPY", "3.2", "300000")
	fresh.Time = 580
	fresh.ID = fresh.ComputeID()
	if err := second.engine.Offer(ctx, fresh, ""); err != nil {
		t.Fatalf("fresh Offer: %v", err)
	}
}
