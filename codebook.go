package kmercodebook

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/hupe1980/kmercodebook/alphabet"
	"github.com/hupe1980/kmercodebook/cluster"
	"github.com/hupe1980/kmercodebook/distance"
	"github.com/hupe1980/kmercodebook/fasta"
	"github.com/hupe1980/kmercodebook/kmedoids"
	"github.com/hupe1980/kmercodebook/kmer"
	"github.com/hupe1980/kmercodebook/matrix"
	"github.com/hupe1980/kmercodebook/sequence"
)

const protoIDPrefix = "proto_"

// Codebook accumulates threshold-bounded k-mer clusters over one or more
// clustering runs and persists their prototypes.
//
// Prototypes survive across runs; cluster member lists are bound to the
// index of the run that produced them and are replaced by the next run.
type Codebook struct {
	alpha      *alphabet.Alphabet
	mat        *matrix.Matrix
	table      *distance.PackedTable
	kmerLength int
	threshold  distance.Dist
	opts       options

	nextSerial int
	prototypes []*cluster.Prototype
	clusters   []*cluster.Cluster
}

// New creates an empty codebook for k-mers of the given length. The
// threshold is the maximum prototype distance for cluster membership, in
// units of the configured distance function.
func New(kmerLength int, threshold distance.Dist, optFns ...Option) (*Codebook, error) {
	if kmerLength < 1 {
		return nil, ErrInvalidKmerLength
	}

	opts := options{
		kind:         distance.KindBlosumDifference,
		charsPerWord: 2,
		workers:      runtime.GOMAXPROCS(0),
		variant:      cluster.VariantGlobal,
		logger:       NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.matrix == nil {
		opts.matrix = matrix.Blosum62()
	}

	alpha, err := alphabet.FromMatrix(opts.matrix)
	if err != nil {
		return nil, err
	}

	raw, err := distance.Provider(opts.kind, opts.matrix)
	if err != nil {
		return nil, err
	}

	table, err := distance.NewPackedTable(alpha, raw, opts.charsPerWord)
	if err != nil {
		return nil, err
	}

	return &Codebook{
		alpha:      alpha,
		mat:        opts.matrix,
		table:      table,
		kmerLength: kmerLength,
		threshold:  threshold,
		opts:       opts,
	}, nil
}

// Alphabet returns the codebook's symbol alphabet.
func (cb *Codebook) Alphabet() *alphabet.Alphabet { return cb.alpha }

// KmerLength returns the codebook's k-mer length.
func (cb *Codebook) KmerLength() int { return cb.kmerLength }

// Clusters returns the clusters of the most recent run.
func (cb *Codebook) Clusters() []*cluster.Cluster { return cb.clusters }

// Prototypes returns every prototype created or loaded so far.
func (cb *Codebook) Prototypes() []*cluster.Prototype { return cb.prototypes }

// createPrototype hands out the next prototype serial. Only called from
// serial seed phases.
func (cb *Codebook) createPrototype(k *kmer.Kmer) *cluster.Prototype {
	code := cb.alpha.EncodeKmer([]byte(k.Word()), cb.table.CharsPerWord())
	p := cluster.NewPrototype(cb.nextSerial, k.Word(), code)
	cb.nextSerial++
	cb.prototypes = append(cb.prototypes, p)
	return p
}

// encodeAll computes the packed encoding of every sequence long enough to
// hold a k-mer.
func (cb *Codebook) encodeAll(seqs []*sequence.Sequence) error {
	for _, s := range seqs {
		if s.KmerCount(cb.kmerLength) == 0 {
			continue
		}
		if err := s.Encode(cb.alpha, cb.kmerLength, cb.table.CharsPerWord()); err != nil {
			return err
		}
	}
	return nil
}

// Build clusters every k-mer of the sequence collection, extending the
// prototypes already in the codebook before seeding new ones. increment
// is the number of fresh clusters seeded per pass; with zero increment
// the run only extends loaded prototypes.
func (cb *Codebook) Build(ctx context.Context, seqs []*sequence.Sequence, increment int) (*cluster.Result, error) {
	if len(seqs) == 0 {
		return nil, ErrNoSequences
	}
	if err := cb.encodeAll(seqs); err != nil {
		return nil, err
	}

	idx, err := kmer.NewIndex(seqs, cb.kmerLength)
	if err != nil {
		return nil, err
	}

	logger := cb.opts.logger.WithKmerLength(cb.kmerLength).WithThreshold(int(cb.threshold))
	logger.Info("building codebook",
		"sequences", len(seqs),
		"distinctKmers", idx.Len(),
		"prototypes", len(cb.prototypes),
	)

	// Loaded prototypes join the run as empty clusters bound to this
	// run's index, so the scan extends them before seeding new ones.
	existing := make([]*cluster.Cluster, 0, len(cb.prototypes))
	for _, p := range cb.prototypes {
		existing = append(existing, cluster.New(p, idx))
	}

	eng, err := cluster.NewEngine(idx, cb.table, cb.createPrototype, cluster.Config{
		Threshold:        cb.threshold,
		ClusterIncrement: increment,
		Workers:          cb.opts.workers,
		Variant:          cb.opts.variant,
		Seed:             cb.opts.seed,
		Logger:           logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	res, err := eng.Run(ctx, existing)
	if err != nil {
		return nil, err
	}

	cb.clusters = res.Clusters
	for _, c := range cb.clusters {
		c.Prototype().AddSize(c.InstanceCount())
	}

	return res, nil
}

// Refine partitions the k-mers of a bounded window collection, assumed to
// cover one domain family, with the k-medoids refiner. The resulting
// clusters are returned and appended to the codebook's cluster list; new
// prototypes continue the codebook's serial numbering.
//
// Zero values in cfg for Threshold, Workers, Seed and Logger inherit the
// codebook's settings. An explicit refine threshold of zero is therefore
// not expressible; it resolves to the codebook threshold.
func (cb *Codebook) Refine(ctx context.Context, windows []sequence.Window, cfg kmedoids.Config) ([]*cluster.Cluster, error) {
	seqs := make([]*sequence.Sequence, 0, len(windows))
	seen := map[*sequence.Sequence]bool{}
	for _, w := range windows {
		if !seen[w.Seq] {
			seen[w.Seq] = true
			seqs = append(seqs, w.Seq)
		}
	}
	if err := cb.encodeAll(seqs); err != nil {
		return nil, err
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = cb.threshold
	}
	if cfg.Workers == 0 {
		cfg.Workers = cb.opts.workers
	}
	if cfg.Seed == 0 {
		cfg.Seed = cb.opts.seed
	}
	if cfg.Logger == nil {
		cfg.Logger = cb.opts.logger.Logger
	}

	refiner, err := kmedoids.NewRefiner(cb.table, cb.createPrototype, cfg)
	if err != nil {
		return nil, err
	}

	clusters, err := refiner.Partition(ctx, windows, cb.kmerLength)
	if err != nil {
		return nil, err
	}

	for _, c := range clusters {
		c.Prototype().AddSize(c.InstanceCount())
	}
	cb.clusters = append(cb.clusters, clusters...)

	return clusters, nil
}

// SavePrototypes writes every prototype with a non-zero size as a FASTA
// record ">proto_N size=M", compressed per the codebook's compression
// option. Loading these records restores the codebook for a later run.
func (cb *Codebook) SavePrototypes(w io.Writer) error {
	cw, err := compressWriter(w, cb.opts.compression)
	if err != nil {
		return err
	}

	records := make([]fasta.Record, 0, len(cb.prototypes))
	for _, p := range cb.prototypes {
		if p.Size() == 0 {
			continue
		}
		records = append(records, fasta.Record{
			ID:       p.ID(),
			Defline:  fmt.Sprintf("%s size=%d", p.ID(), p.Size()),
			Residues: []byte(p.Kmer().Word()),
		})
	}

	if err := fasta.Write(cw, records); err != nil {
		cw.Close()
		return err
	}
	return cw.Close()
}

// SaveClusters writes the clusters of the most recent run as delimited
// text: one "Cluster,<size>,<prototype>" header per cluster followed by
// one line per member listing its instances as "seqID:pos;" entries.
func (cb *Codebook) SaveClusters(w io.Writer) error {
	cw, err := compressWriter(w, cb.opts.compression)
	if err != nil {
		return err
	}

	for _, c := range cb.clusters {
		idx := c.Index()
		if _, err := fmt.Fprintf(cw, "Cluster,%d,%s\n", c.Size(), c.Prototype().ID()); err != nil {
			cw.Close()
			return err
		}
		for _, id := range c.Members() {
			if _, err := fmt.Fprintln(cw, idx.Kmer(id).String()); err != nil {
				cw.Close()
				return err
			}
		}
	}
	return cw.Close()
}

// LoadPrototypes restores prototypes from a FASTA stream previously
// written by SavePrototypes. Compression is detected from the stream.
// Serial numbering continues past the largest loaded serial.
func (cb *Codebook) LoadPrototypes(r io.Reader) error {
	dr, err := decompressReader(r)
	if err != nil {
		return err
	}

	records, err := fasta.Parse(dr)
	if err != nil {
		return err
	}

	for _, rec := range records {
		serialText, ok := strings.CutPrefix(rec.ID, protoIDPrefix)
		if !ok {
			return &ErrInvalidPrototype{Defline: rec.Defline}
		}
		serial, err := strconv.Atoi(serialText)
		if err != nil {
			return &ErrInvalidPrototype{Defline: rec.Defline, cause: err}
		}

		// A prototype is one k-mer; anything else would index past its
		// packed code during the scan.
		if len(rec.Residues) != cb.kmerLength {
			return &ErrInvalidPrototype{
				Defline: rec.Defline,
				cause:   fmt.Errorf("prototype has %d residues, want %d", len(rec.Residues), cb.kmerLength),
			}
		}

		code := cb.alpha.EncodeKmer(rec.Residues, cb.table.CharsPerWord())
		p := cluster.NewPrototype(serial, string(rec.Residues), code)
		p.AddSize(sizeFromDefline(rec.Defline))
		cb.prototypes = append(cb.prototypes, p)

		if serial >= cb.nextSerial {
			cb.nextSerial = serial + 1
		}
	}

	cb.opts.logger.Info("prototypes loaded", "count", len(records))
	return nil
}

// sizeFromDefline extracts the "size=M" metadata field, zero when absent
// or malformed.
func sizeFromDefline(defline string) int {
	for _, field := range strings.FieldsFunc(defline, func(r rune) bool {
		return r == ' ' || r == '|' || r == ';'
	}) {
		if v, ok := strings.CutPrefix(field, "size="); ok {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}
