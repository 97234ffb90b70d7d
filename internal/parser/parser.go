// Package parser turns the raw field-name to cell-text mapping captured for
// one order-flow row into a typed model.Record.
package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"flow-alerts/internal/model"
	"flow-alerts/internal/timeparse"
)

// FieldKind is the closed set of recognised row fields.
type FieldKind int

const (
	FieldUnrecognized FieldKind = iota
	FieldTime
	FieldExpiryDate
	FieldStrike
	FieldSide
	FieldSize
	FieldPrice
	FieldTotalValue
	FieldReason
)

// KindOf maps a raw field label onto a FieldKind. Matching is
// case-insensitive and whitespace-trimmed; anything outside the vocabulary
// maps to FieldUnrecognized.
func KindOf(label string) FieldKind {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "time":
		return FieldTime
	case "expiry date":
		return FieldExpiryDate
	case "strike":
		return FieldStrike
	case "call/put":
		return FieldSide
	case "size":
		return FieldSize
	case "price":
		return FieldPrice
	case "total value":
		return FieldTotalValue
	case "reason":
		return FieldReason
	default:
		return FieldUnrecognized
	}
}

// Parse builds a Record from raw row fields. The symbol must already be
// resolved by the caller; an empty symbol yields the sentinel value.
// Unrecognised field labels are skipped. A malformed time or numeric cell
// returns a *timeparse.FormatError and no record.
func Parse(fields map[string]string, symbol string) (model.Record, error) {
	rec := model.Record{Symbol: symbol}
	if rec.Symbol == "" {
		rec.Symbol = model.SymbolUnknown
	}

	for label, text := range fields {
		text = strings.TrimSpace(text)
		switch KindOf(label) {
		case FieldTime:
			minutes, err := timeparse.ParseClock(text)
			if err != nil {
				return model.Record{}, err
			}
			rec.Time = minutes
		case FieldExpiryDate:
			rec.ExpiryDate = text
		case FieldStrike:
			value, err := parseScaled(text)
			if err != nil {
				return model.Record{}, err
			}
			rec.Strike = value
		case FieldSide:
			rec.Side = model.ParseSide(text)
		case FieldSize:
			value, err := parseScaled(text)
			if err != nil {
				return model.Record{}, err
			}
			rec.Size = value
		case FieldPrice:
			value, err := parseScaled(text)
			if err != nil {
				return model.Record{}, err
			}
			rec.Price = value
		case FieldTotalValue:
			value, err := parseScaled(text)
			if err != nil {
				return model.Record{}, err
			}
			rec.TotalValue = value
		case FieldReason:
			rec.Reason = text
		}
	}

	rec.ID = rec.ComputeID()
	return rec, nil
}

// parseScaled parses a numeric cell, applying a trailing "k" (thousand) or
// "m" (million) magnitude suffix case-insensitively.
func parseScaled(text string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(text)
	multiplier := decimal.NewFromInt(1)

	switch {
	case strings.HasSuffix(strings.ToLower(trimmed), "k"):
		multiplier = decimal.NewFromInt(1000)
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-1])
	case strings.HasSuffix(strings.ToLower(trimmed), "m"):
		multiplier = decimal.NewFromInt(1000000)
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-1])
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, &timeparse.FormatError{Input: text, Reason: "non-numeric value"}
	}
	return value.Mul(multiplier), nil
}
