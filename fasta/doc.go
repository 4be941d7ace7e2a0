// Package fasta reads and writes FASTA sequence files, with transparent
// gzip handling on the file helpers.
package fasta
