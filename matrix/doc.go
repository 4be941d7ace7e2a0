// Package matrix provides symbol-pair similarity tables for biological
// sequence comparison.
//
// The BLOSUM family of substitution matrices is embedded (45, 50, 62, 80);
// custom tables in the standard whitespace-delimited text format can be
// loaded with Parse. Matrices are immutable after construction and safe for
// concurrent use.
package matrix
