// Package distance provides substitution-matrix-derived k-mer distances.
//
// Raw functions score two equal-length symbol windows; PackedTable
// precomputes every raw distance over short packed tuples so that k-mer
// queries of arbitrary length reduce to a few table lookups. IsWithin adds
// an early exit for threshold queries, which dominates clustering scans
// where most candidate pairs are far apart.
package distance
