// Package alphabet maps biological symbol sets (amino acids, nucleotides)
// to small integer codes and packs tuples of consecutive symbols into
// compact mixed-radix words.
//
// Packed words are the unit of the precomputed distance tables in the
// distance package: a k-mer distance becomes a handful of table lookups
// over word pairs instead of k matrix probes.
package alphabet
