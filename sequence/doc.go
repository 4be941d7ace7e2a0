// Package sequence models biological sequences and bounded windows over
// them, carrying the staggered packed encoding that the clustering engine
// reads k-mer codes from.
package sequence
