package kmercodebook

import (
	"github.com/hupe1980/kmercodebook/cluster"
	"github.com/hupe1980/kmercodebook/distance"
	"github.com/hupe1980/kmercodebook/matrix"
)

type options struct {
	matrix       *matrix.Matrix
	kind         distance.Kind
	charsPerWord int
	workers      int
	variant      cluster.Variant
	seed         int64
	compression  Compression
	logger       *Logger
}

// Option configures codebook construction.
type Option func(*options)

// WithMatrix sets the similarity matrix the distance function is derived
// from. Defaults to BLOSUM62.
func WithMatrix(m *matrix.Matrix) Option {
	return func(o *options) {
		if m != nil {
			o.matrix = m
		}
	}
}

// WithDistanceKind selects the raw symbol distance. Defaults to the
// BLOSUM difference distance.
func WithDistanceKind(k distance.Kind) Option {
	return func(o *options) {
		o.kind = k
	}
}

// WithCharsPerWord sets how many symbols pack into one distance-table
// word. Larger values trade table memory for fewer lookups per k-mer;
// 2 is the sweet spot for the 24-symbol amino acid alphabet.
func WithCharsPerWord(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.charsPerWord = n
		}
	}
}

// WithWorkers sets the clustering parallelism. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithVariant selects the engine scheduling variant.
func WithVariant(v cluster.Variant) Option {
	return func(o *options) {
		o.variant = v
	}
}

// WithSeed sets the random seed driving the clustering shuffle. Runs
// with equal seed, workers and variant reproduce their membership sets.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithCompression sets the compression applied when saving codebook
// files. Loading always auto-detects.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures a custom logger. If nil is passed, logging is
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}
