package feed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

var (
	mockSymbols = []string{"SPY", "QQQ", "TSLA", "NVDA", "AAPL", "AMD"}
	mockExpiry  = []string{"today", "tomorrow", "17 Apr", "16 May", "20 Jun 2025"}
	mockReasons = []string{"SWEEP", "BLOCK", "SPLIT", ""}
)

// MockOptions tune the synthetic row generator.
type MockOptions struct {
	// Interval is the pause between emissions; defaults to 500ms.
	Interval time.Duration
	// BurstChance is the probability (0..1) that an emission is a related
	// burst big enough to cross a typical threshold; defaults to 0.2.
	BurstChance float64
	// LateSymbolChance is the probability that a row is emitted without its
	// symbol, which then arrives on the symbol channel; defaults to 0.1.
	LateSymbolChance float64
	// Seed fixes the random stream for reproducible runs; 0 means random.
	Seed int64
}

func (o *MockOptions) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.BurstChance <= 0 {
		o.BurstChance = 0.2
	}
	if o.LateSymbolChance <= 0 {
		o.LateSymbolChance = 0.1
	}
}

// MockSource fabricates plausible order-flow rows for development and the
// simulate command. Roughly one emission in five is a related burst: several
// rows sharing symbol, expiry, and side whose values sum past a typical
// threshold.
type MockSource struct {
	logger  zerolog.Logger
	opts    MockOptions
	rng     *rand.Rand
	rows    chan RawRow
	symbols chan SymbolHint
	nextRow int
}

var _ Source = (*MockSource)(nil)

// NewMockSource constructs the generator.
func NewMockSource(opts MockOptions, logger zerolog.Logger) *MockSource {
	opts.applyDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockSource{
		logger:  logger.With().Str("component", "feed").Str("source", "mock").Logger(),
		opts:    opts,
		rng:     rand.New(rand.NewSource(seed)),
		rows:    make(chan RawRow, 256),
		symbols: make(chan SymbolHint, 64),
	}
}

func (s *MockSource) Rows() <-chan RawRow        { return s.rows }
func (s *MockSource) Symbols() <-chan SymbolHint { return s.symbols }

// Run emits synthetic rows until ctx is cancelled.
func (s *MockSource) Run(ctx context.Context) error {
	defer close(s.rows)
	defer close(s.symbols)
	s.logger.Info().Dur("interval", s.opts.Interval).Msg("mock feed started")

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.rng.Float64() < s.opts.BurstChance {
				s.emitBurst(ctx)
			} else {
				s.emit(ctx, s.randomRow())
			}
		}
	}
}

// emitBurst produces 3 to 5 related rows whose total value lands between one
// and two million, comfortably past the default threshold.
func (s *MockSource) emitBurst(ctx context.Context) {
	symbol := mockSymbols[s.rng.Intn(len(mockSymbols))]
	expiry := mockExpiry[s.rng.Intn(len(mockExpiry))]
	side := "CALL"
	if s.rng.Intn(2) == 0 {
		side = "PUT"
	}
	strike := s.halfPointStrike()

	count := 3 + s.rng.Intn(3)
	for i := 0; i < count; i++ {
		row := s.buildRow(symbol, expiry, side, strike, 300_000+s.rng.Intn(200_000))
		s.emit(ctx, row)
	}
	s.logger.Debug().Str("symbol", symbol).Str("expiry", expiry).Int("rows", count).Msg("emitted related burst")
}

func (s *MockSource) randomRow() RawRow {
	symbol := mockSymbols[s.rng.Intn(len(mockSymbols))]
	expiry := mockExpiry[s.rng.Intn(len(mockExpiry))]
	side := "CALL"
	if s.rng.Intn(2) == 0 {
		side = "PUT"
	}
	return s.buildRow(symbol, expiry, side, s.halfPointStrike(), 10_000+s.rng.Intn(400_000))
}

func (s *MockSource) buildRow(symbol, expiry, side string, strike float64, totalValue int) RawRow {
	s.nextRow++
	now := time.Now()
	size := 1 + s.rng.Intn(500)
	price := 0.5 + s.rng.Float64()*20

	// Some cells carry magnitude suffixes, as the capture surface does.
	total := fmt.Sprintf("%d", totalValue)
	if totalValue >= 1_000_000 && totalValue%1_000_000 == 0 {
		total = fmt.Sprintf("%dm", totalValue/1_000_000)
	} else if totalValue%1_000 == 0 {
		total = fmt.Sprintf("%dk", totalValue/1_000)
	}

	row := RawRow{
		Hint:   fmt.Sprintf("mock-%d", s.nextRow),
		Symbol: symbol,
		Fields: map[string]string{
			"Time":        fmt.Sprintf("%d:%02d", now.Hour(), now.Minute()),
			"Expiry Date": expiry,
			"Strike":      formatStrike(strike),
			"Call/Put":    side,
			"Size":        fmt.Sprintf("%d", size),
			"Price":       fmt.Sprintf("%.2f", price),
			"Total Value": total,
			"Reason":      mockReasons[s.rng.Intn(len(mockReasons))],
		},
	}

	if s.rng.Float64() < s.opts.LateSymbolChance {
		row.Symbol = ""
	}
	return row
}

func (s *MockSource) halfPointStrike() float64 {
	// Whole or half points within the default admission bounds.
	return 100 + float64(s.rng.Intn(1400))/2
}

func formatStrike(strike float64) string {
	if strike == float64(int(strike)) {
		return fmt.Sprintf("%d", int(strike))
	}
	return fmt.Sprintf("%.1f", strike)
}

func (s *MockSource) emit(ctx context.Context, row RawRow) {
	select {
	case s.rows <- row:
	case <-ctx.Done():
		return
	}
	if row.Symbol == "" {
		// Resolve shortly afterwards through the side channel.
		symbol := mockSymbols[s.rng.Intn(len(mockSymbols))]
		select {
		case s.symbols <- SymbolHint{Hint: row.Hint, Symbol: symbol}:
		case <-ctx.Done():
		}
	}
}
