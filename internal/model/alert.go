package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Alert is an aggregated, persisted notable event for one
// (expiry, side, symbol) group. Its identity is coarser than a record's so
// repeated aggregation passes for the same group update the alert in place.
type Alert struct {
	ID         string          `json:"id"`
	ExpiryDate string          `json:"expiryDate"`
	Side       Side            `json:"type"`
	Symbol     string          `json:"symbol"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Entries    []Record        `json:"entries"`
	Timestamp  time.Time       `json:"timestamp"`
}

// AlertID derives the deterministic alert identity for a group.
func AlertID(key GroupKey) string {
	return fmt.Sprintf("%s-%s-%s", key.ExpiryDate, key.Side, key.Symbol)
}

// StrikeRange returns the lowest and highest strike among the contributing
// records. Both are zero when the alert has no entries.
func (a Alert) StrikeRange() (decimal.Decimal, decimal.Decimal) {
	if len(a.Entries) == 0 {
		return decimal.Decimal{}, decimal.Decimal{}
	}
	min := a.Entries[0].Strike
	max := a.Entries[0].Strike
	for _, entry := range a.Entries[1:] {
		if entry.Strike.LessThan(min) {
			min = entry.Strike
		}
		if entry.Strike.GreaterThan(max) {
			max = entry.Strike
		}
	}
	return min, max
}
