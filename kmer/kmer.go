package kmer

import (
	"fmt"
	"strings"

	"github.com/hupe1980/kmercodebook/alphabet"
	"github.com/hupe1980/kmercodebook/distance"
	"github.com/hupe1980/kmercodebook/sequence"
)

// ID is a stable index into an Index's k-mer arena. Everything outside the
// index refers to k-mers by ID, never by pointer into the arena.
type ID int32

// Instance is one occurrence of a k-mer's content within a sequence.
type Instance struct {
	Seq *sequence.Sequence
	Pos int
}

func (in Instance) String() string {
	return fmt.Sprintf("%s:%d", in.Seq.ID(), in.Pos)
}

// Kmer is one distinct k-mer content together with every location it
// occurs at. Identity is byte-exact equality of the content; occurrences of
// identical content anywhere in the input collapse onto one record.
type Kmer struct {
	word      string
	code      []alphabet.Word
	instances []Instance

	// Distance to the owning cluster's prototype, MaxDist until assigned.
	distanceFromPrototype distance.Dist
}

// New creates a standalone k-mer record, typically a cluster prototype.
func New(word string, code []alphabet.Word) *Kmer {
	return &Kmer{
		word:                  word,
		code:                  code,
		distanceFromPrototype: distance.MaxDist,
	}
}

// Word returns the character content.
func (k *Kmer) Word() string { return k.word }

// Len returns the k-mer length.
func (k *Kmer) Len() int { return len(k.word) }

// Code returns the packed encoding of the k-mer's first instance.
func (k *Kmer) Code() []alphabet.Word { return k.code }

// Instances returns every occurrence of the content.
func (k *Kmer) Instances() []Instance { return k.instances }

// InstanceCount returns the number of occurrences.
func (k *Kmer) InstanceCount() int { return len(k.instances) }

// DistanceFromPrototype returns the distance recorded at cluster
// assignment, or distance.MaxDist when unassigned.
func (k *Kmer) DistanceFromPrototype() distance.Dist { return k.distanceFromPrototype }

// SetDistanceFromPrototype records the assignment distance.
func (k *Kmer) SetDistanceFromPrototype(d distance.Dist) { k.distanceFromPrototype = d }

func (k *Kmer) String() string {
	var sb strings.Builder
	for _, in := range k.instances {
		sb.WriteString(in.String())
		sb.WriteByte(';')
	}
	return sb.String()
}

func (k *Kmer) add(seq *sequence.Sequence, pos int) {
	k.instances = append(k.instances, Instance{Seq: seq, Pos: pos})
}
