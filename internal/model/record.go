package model

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// SymbolUnknown is the sentinel used when no symbol could be resolved for a row.
const SymbolUnknown = "UNKWN"

// Side classifies an options order-flow row.
type Side string

const (
	SideCall    Side = "call"
	SidePut     Side = "put"
	SideUnknown Side = "unknown"
)

// ParseSide maps the captured call/put cell text onto a Side.
func ParseSide(text string) Side {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "c", "call":
		return SideCall
	case "p", "put":
		return SidePut
	default:
		return SideUnknown
	}
}

// Record is one parsed observation of an options order-flow row.
// JSON field names follow the persisted entry-cache format.
type Record struct {
	// Time is minutes since local midnight. Negative values mark rows
	// carried over from the previous session ("yesterday").
	Time         int             `json:"time"`
	ExpiryDate   string          `json:"expiryDate"`
	Strike       decimal.Decimal `json:"strike"`
	Side         Side            `json:"type"`
	Size         decimal.Decimal `json:"size"`
	Price        decimal.Decimal `json:"price"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	Reason       string          `json:"reason"`
	Symbol       string          `json:"symbol"`
	ID           string          `json:"id"`
	ShownInAlert bool            `json:"shownInAlert"`
	Verified     bool            `json:"verified"`
}

// ComputeID derives the deterministic record identity from the economic
// fields only. Capture time is deliberately excluded so that the same row
// observed twice collapses to one identity.
func (r Record) ComputeID() string {
	symbol := r.Symbol
	if symbol == "" {
		symbol = SymbolUnknown
	}
	return strings.Join([]string{
		symbol,
		r.ExpiryDate,
		string(r.Side),
		r.Strike.String(),
		r.Size.String(),
		r.Price.String(),
		r.TotalValue.String(),
	}, "-")
}

// Group returns the aggregation key for the record.
func (r Record) Group() GroupKey {
	symbol := r.Symbol
	if symbol == "" {
		symbol = SymbolUnknown
	}
	return GroupKey{Symbol: symbol, ExpiryDate: r.ExpiryDate, Side: r.Side}
}

// HasSymbol reports whether the record carries a resolved symbol.
func (r Record) HasSymbol() bool {
	return r.Symbol != "" && r.Symbol != SymbolUnknown
}

// serializedRecord is the cache wire form. Capture time and any row-position
// context are excluded so that economically identical observations serialize
// identically regardless of when they were seen.
type serializedRecord struct {
	ExpiryDate   string          `json:"expiryDate"`
	Strike       decimal.Decimal `json:"strike"`
	Side         Side            `json:"type"`
	Size         decimal.Decimal `json:"size"`
	Price        decimal.Decimal `json:"price"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	Reason       string          `json:"reason"`
	Symbol       string          `json:"symbol"`
	ID           string          `json:"id"`
	ShownInAlert bool            `json:"shownInAlert"`
	Verified     bool            `json:"verified"`
}

// Serialize renders the record in its cache wire form.
func Serialize(r Record) string {
	raw, err := json.Marshal(serializedRecord{
		ExpiryDate:   r.ExpiryDate,
		Strike:       r.Strike,
		Side:         r.Side,
		Size:         r.Size,
		Price:        r.Price,
		TotalValue:   r.TotalValue,
		Reason:       r.Reason,
		Symbol:       r.Symbol,
		ID:           r.ID,
		ShownInAlert: r.ShownInAlert,
		Verified:     r.Verified,
	})
	if err != nil {
		// all fields are plain values; marshalling cannot fail
		return ""
	}
	return string(raw)
}

// Deserialize restores a record from its cache wire form.
func Deserialize(data string) (Record, error) {
	var s serializedRecord
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Record{}, err
	}
	return Record{
		ExpiryDate:   s.ExpiryDate,
		Strike:       s.Strike,
		Side:         s.Side,
		Size:         s.Size,
		Price:        s.Price,
		TotalValue:   s.TotalValue,
		Reason:       s.Reason,
		Symbol:       s.Symbol,
		ID:           s.ID,
		ShownInAlert: s.ShownInAlert,
		Verified:     s.Verified,
	}, nil
}

// GroupKey identifies one (symbol, expiry, side) aggregation group.
type GroupKey struct {
	Symbol     string
	ExpiryDate string
	Side       Side
}

// String renders the debounce map key.
func (k GroupKey) String() string {
	return k.Symbol + "|" + k.ExpiryDate + "|" + string(k.Side)
}
