package cluster

import (
	"fmt"
	"sync"

	"github.com/hupe1980/kmercodebook/alphabet"
	"github.com/hupe1980/kmercodebook/kmer"
)

// Prototype is the representative k-mer of a cluster. It is a standalone
// copy of a chosen k-mer's content, detached from the index arena, with a
// serial identifier that survives persistence.
type Prototype struct {
	id     string
	serial int
	size   int
	kmer   *kmer.Kmer
}

// NewPrototype creates a prototype with an explicit serial number, used
// when loading a persisted codebook.
func NewPrototype(serial int, word string, code []alphabet.Word) *Prototype {
	return &Prototype{
		id:     fmt.Sprintf("proto_%d", serial),
		serial: serial,
		kmer:   kmer.New(word, code),
	}
}

// ID returns the prototype identifier, e.g. "proto_42".
func (p *Prototype) ID() string { return p.id }

// Serial returns the prototype serial number.
func (p *Prototype) Serial() int { return p.serial }

// Size returns the cumulative instance count attributed to the prototype
// across clustering runs.
func (p *Prototype) Size() int { return p.size }

// AddSize accumulates instances attributed by one clustering run.
func (p *Prototype) AddSize(n int) { p.size += n }

// Kmer returns the prototype's standalone k-mer record.
func (p *Prototype) Kmer() *kmer.Kmer { return p.kmer }

// Factory turns a k-mer chosen during a serial seed phase into a uniquely
// identified prototype. Implementations need not be safe for concurrent
// use; the engine only calls the factory from serial sections.
type Factory func(k *kmer.Kmer) *Prototype

// NewSerialFactory returns a Factory handing out consecutive serial
// numbers starting at next. The prototype receives its own copy of the
// source k-mer's packed code.
func NewSerialFactory(next int) Factory {
	return func(k *kmer.Kmer) *Prototype {
		code := append([]alphabet.Word(nil), k.Code()...)
		p := NewPrototype(next, k.Word(), code)
		next++
		return p
	}
}

// Cluster is one prototype together with an append-only list of member
// k-mer IDs. Members are only ever added, never removed or reordered, so
// concurrent readers may iterate while an assignment pass appends.
type Cluster struct {
	prototype *Prototype
	idx       *kmer.Index

	mu      sync.Mutex
	members []kmer.ID
}

// New creates an empty cluster around a prototype. Members reference
// records of idx by ID.
func New(prototype *Prototype, idx *kmer.Index) *Cluster {
	return &Cluster{prototype: prototype, idx: idx}
}

// Prototype returns the cluster's prototype.
func (c *Cluster) Prototype() *Prototype { return c.prototype }

// Index returns the index the member IDs resolve against.
func (c *Cluster) Index() *kmer.Index { return c.idx }

// Add appends a member. Safe for concurrent use.
func (c *Cluster) Add(id kmer.ID) {
	c.mu.Lock()
	c.members = append(c.members, id)
	c.mu.Unlock()
}

// Members returns the member IDs. The returned slice is a snapshot.
func (c *Cluster) Members() []kmer.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]kmer.ID(nil), c.members...)
}

// Size returns the number of distinct member k-mers.
func (c *Cluster) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

// InstanceCount returns the total occurrence count over all members. This
// is generally larger than Size because one k-mer content may occur at
// many sequence positions.
func (c *Cluster) InstanceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, id := range c.members {
		total += c.idx.Kmer(id).InstanceCount()
	}
	return total
}
