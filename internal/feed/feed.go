// Package feed supplies raw order-flow rows to the service. Sources deliver
// rows as loosely labelled field maps; parsing and admission happen
// downstream so a malformed row never takes the source down.
package feed

import "context"

// RawRow is one captured order-flow row before parsing. Fields maps the raw
// column labels onto their cell text. Hint carries an opaque row identity
// used to pair the row with a late symbol resolution; Symbol is set when the
// source already knows the underlying.
type RawRow struct {
	Fields map[string]string
	Hint   string
	Symbol string
}

// SymbolHint is a late symbol resolution for a previously delivered row.
type SymbolHint struct {
	Hint   string
	Symbol string
}

// Source is a live producer of order-flow rows.
type Source interface {
	// Run drives the source until ctx is cancelled, reconnecting as needed.
	Run(ctx context.Context) error
	// Rows yields captured rows. The channel closes when Run returns.
	Rows() <-chan RawRow
	// Symbols yields late symbol resolutions for rows delivered without one.
	Symbols() <-chan SymbolHint
}
