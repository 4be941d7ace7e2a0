package kmercodebook

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSequences is returned when a build is attempted over an empty
	// sequence collection.
	ErrNoSequences = errors.New("no input sequences")

	// ErrInvalidKmerLength is returned for a non-positive k-mer length.
	ErrInvalidKmerLength = errors.New("k-mer length must be positive")
)

// ErrInvalidPrototype indicates a prototype record that could not be
// decoded while loading a codebook.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidPrototype struct {
	Defline string
	cause   error
}

func (e *ErrInvalidPrototype) Error() string {
	return fmt.Sprintf("invalid prototype record %q", e.Defline)
}

func (e *ErrInvalidPrototype) Unwrap() error { return e.cause }

// ErrUnknownCompression indicates an unsupported compression selector.
type ErrUnknownCompression struct {
	Compression Compression
}

func (e *ErrUnknownCompression) Error() string {
	return fmt.Sprintf("unknown compression: %d", e.Compression)
}
