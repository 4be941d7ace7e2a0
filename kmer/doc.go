// Package kmer deduplicates k-mer occurrences across a sequence collection
// into distinct content records with full occurrence lists.
//
// The Index owns an arena of records; all other packages refer to records
// by integer ID, so cluster membership lists stay valid however the arena
// was built. Content identity is byte-exact and alphabet-agnostic.
package kmer
