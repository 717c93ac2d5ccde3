// Package payment implements the exact payment distribution: allocating
// one payment across several open balances in integer minor-currency
// units.
//
// No floating point is involved anywhere - amounts enter as decimal
// strings, are parsed to cents exactly, and every intermediate value stays
// an int64. Ties and remainders always favor the first participant; the
// bias is deliberate and load-bearing, because reproducible accounting
// requires the same allocation for the same input, run after run.
package payment
