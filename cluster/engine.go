package cluster

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/kmercodebook/distance"
	"github.com/hupe1980/kmercodebook/kmer"
)

// ErrNoSeeds is returned when a run has no pre-existing clusters and a
// zero cluster increment: no assignment could ever happen.
var ErrNoSeeds = errors.New("cluster: no existing clusters and zero cluster increment")

// Variant selects the engine's parallel scheduling strategy.
type Variant int

const (
	// VariantGlobal scans the whole unassigned range with all workers and
	// compacts it through one shared high-water mark.
	VariantGlobal Variant = iota

	// VariantBanded statically partitions the unassigned range into one
	// contiguous band per worker, fixed for the whole run. Compaction is
	// band-local, at the price of possible load imbalance.
	VariantBanded
)

func (v Variant) String() string {
	switch v {
	case VariantGlobal:
		return "global"
	case VariantBanded:
		return "banded"
	default:
		return "unknown"
	}
}

// Config holds the engine parameters. Threshold and ClusterIncrement have
// no useful defaults; both depend on the distance function and the data.
type Config struct {
	// Threshold is the maximum prototype distance for cluster membership.
	Threshold distance.Dist

	// ClusterIncrement is the number of new clusters seeded per pass.
	// Smaller values reduce the chance of seeding a prototype inside an
	// existing cluster's basin of attraction.
	ClusterIncrement int

	// Workers is the scan parallelism. Defaults to GOMAXPROCS.
	Workers int

	Variant Variant

	// Seed drives the setup shuffle. Runs with equal seed, worker count
	// and variant produce identical membership sets.
	Seed int64

	Logger *slog.Logger
}

// DefaultConfig returns a Config with scheduling defaults filled in.
// Threshold and ClusterIncrement must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		Workers: runtime.GOMAXPROCS(0),
		Variant: VariantGlobal,
	}
}

// Result is the outcome of a clustering run.
type Result struct {
	// Clusters holds the input clusters plus every cluster seeded during
	// the run, in seeding order.
	Clusters []*Cluster

	// Assigned is the set of k-mer IDs that belong to some cluster.
	Assigned *roaring.Bitmap

	// AssignedInstances is the total occurrence count over all assigned
	// k-mers.
	AssignedInstances int

	// Unassigned counts the distinct k-mers left without a cluster,
	// including those excluded up front for exceeding the threshold
	// against themselves.
	Unassigned int
}

// Engine partitions a k-mer index into threshold-bounded clusters without
// a fixed cluster count. Each pass seeds a bounded batch of new prototypes
// from the unassigned pool, then scans all unassigned k-mers against the
// prototypes first-fit; the run ends when everything is assigned or a pass
// makes no progress.
//
// First-fit is deliberate: well-conserved k-mers map onto early clusters
// after very few comparisons, which dominates throughput on real protein
// data.
type Engine struct {
	idx     *kmer.Index
	table   *distance.PackedTable
	factory Factory
	cfg     Config

	logger   *slog.Logger
	progress *rate.Limiter
}

// NewEngine creates an engine over an index. The factory is called once
// per seeded cluster, always from a serial section.
func NewEngine(idx *kmer.Index, table *distance.PackedTable, factory Factory, cfg Config) (*Engine, error) {
	if cfg.ClusterIncrement < 0 {
		cfg.ClusterIncrement = 0
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		idx:      idx,
		table:    table,
		factory:  factory,
		cfg:      cfg,
		logger:   logger,
		progress: rate.NewLimiter(rate.Limit(4), 1),
	}, nil
}

// Run clusters the index, extending existing clusters first. existing may
// be nil. The context is honored between passes and inside scan workers;
// on cancellation the partial state is discarded and ctx.Err() returned.
func (e *Engine) Run(ctx context.Context, existing []*Cluster) (*Result, error) {
	if len(existing) == 0 && e.cfg.ClusterIncrement == 0 {
		return nil, ErrNoSeeds
	}

	clusters := append([]*Cluster(nil), existing...)
	ids := e.idx.IDs()

	var err error
	switch e.cfg.Variant {
	case VariantBanded:
		clusters, err = e.runBanded(ctx, clusters, ids)
	default:
		clusters, err = e.runGlobal(ctx, clusters, ids)
	}
	if err != nil {
		return nil, err
	}

	return e.collect(clusters), nil
}

func (e *Engine) collect(clusters []*Cluster) *Result {
	res := &Result{
		Clusters: clusters,
		Assigned: roaring.New(),
	}
	for _, c := range clusters {
		for _, id := range c.Members() {
			res.Assigned.Add(uint32(id))
			res.AssignedInstances += e.idx.Kmer(id).InstanceCount()
		}
	}
	res.Unassigned = e.idx.Len() - int(res.Assigned.GetCardinality())
	return res
}

// excludeUnclusterable moves k-mers whose self-distance exceeds the
// threshold to the front of ids[lo:hi] and returns the new low bound.
// With similarity-derived distances a k-mer can be farther than the
// threshold from itself, in which case no prototype can ever hold it.
func (e *Engine) excludeUnclusterable(ids []kmer.ID, lo, hi int) int {
	k := e.idx.KmerLength()
	for i := lo; i < hi; i++ {
		code := e.idx.Kmer(ids[i]).Code()
		if e.table.Distance(code, code, k) > e.cfg.Threshold {
			ids[lo], ids[i] = ids[i], ids[lo]
			lo++
		}
	}
	return lo
}

// shuffle permutes ids[lo:hi] to avoid ordering bias in first-fit
// assignment.
func shuffle(rng *rand.Rand, ids []kmer.ID, lo, hi int) {
	for i := hi - 1; i > lo; i-- {
		j := lo + rng.Intn(i-lo+1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// seed turns up to want unassigned k-mers from ids[lo:] into new
// singleton clusters. Serial: the factory is not safe for concurrent use.
func (e *Engine) seed(clusters []*Cluster, ids []kmer.ID, lo, hi, want int) []*Cluster {
	if avail := hi - lo; want > avail {
		want = avail
	}
	for i := lo; i < lo+want; i++ {
		proto := e.factory(e.idx.Kmer(ids[i]))
		clusters = append(clusters, New(proto, e.idx))
	}
	return clusters
}

// scan performs the first-fit search for one k-mer over
// clusters[firstCluster:]. It returns the winning cluster index or -1.
func (e *Engine) scan(clusters []*Cluster, id kmer.ID, firstCluster int) (int, distance.Dist) {
	k := e.idx.KmerLength()
	code := e.idx.Kmer(id).Code()

	// Pre-existing clusters come first so that conserved k-mers extend
	// mature clusters rather than fresh ones.
	for j := firstCluster; j < len(clusters); j++ {
		if d, ok := e.table.IsWithin(code, clusters[j].prototype.kmer.Code(), k, e.cfg.Threshold); ok {
			return j, d
		}
	}
	return -1, distance.MaxDist
}

func (e *Engine) logProgress(unassigned, clusterCount int) {
	if e.progress.Allow() {
		e.logger.Info("clustering pass",
			slog.Int("unassigned", unassigned),
			slog.Int("clusters", clusterCount),
			slog.String("variant", e.cfg.Variant.String()),
		)
	}
}

func (e *Engine) runGlobal(ctx context.Context, clusters []*Cluster, ids []kmer.ID) ([]*Cluster, error) {
	n := len(ids)
	rng := rand.New(rand.NewSource(e.cfg.Seed))

	firstUnalloc := e.excludeUnclusterable(ids, 0, n)
	excluded := firstUnalloc
	shuffle(rng, ids, firstUnalloc, n)

	firstCluster := 0
	increment := 0
	if len(clusters) == 0 {
		increment = e.cfg.ClusterIncrement
	}

	for firstUnalloc < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.logProgress(n-firstUnalloc, len(clusters))

		clusters = e.seed(clusters, ids, firstUnalloc, n, increment)

		assigned, err := e.scanRange(ctx, clusters, ids, firstUnalloc, n, firstCluster)
		if err != nil {
			return nil, err
		}
		if len(assigned) == 0 {
			// No prototype attracts the residue. Normal termination; the
			// caller decides whether to re-run with a larger increment.
			break
		}

		// Compact in ascending position order so the surviving pool keeps
		// a deterministic layout regardless of worker scheduling.
		for _, i := range assigned {
			if i > firstUnalloc {
				ids[firstUnalloc], ids[i] = ids[i], ids[firstUnalloc]
			}
			firstUnalloc++
		}

		increment = e.cfg.ClusterIncrement
		firstCluster = len(clusters)
	}

	e.logger.Info("clustering done",
		slog.Int("clusters", len(clusters)),
		slog.Int("unassigned", n-firstUnalloc+excluded),
		slog.Int("excluded", excluded),
	)
	return clusters, nil
}

// scanRange assigns ids[lo:hi] first-fit across Workers goroutines and
// returns the assigned positions in ascending order. Worker w takes the
// w-th contiguous chunk; membership appends synchronize per cluster.
func (e *Engine) scanRange(ctx context.Context, clusters []*Cluster, ids []kmer.ID, lo, hi, firstCluster int) ([]int, error) {
	workers := e.cfg.Workers
	span := hi - lo
	if span < workers {
		workers = span
	}

	perWorker := make([][]int, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			begin := lo + w*span/workers
			end := lo + (w+1)*span/workers
			var hits []int

			for i := begin; i < end; i++ {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}

				j, d := e.scan(clusters, ids[i], firstCluster)
				if j < 0 {
					continue
				}
				e.idx.Kmer(ids[i]).SetDistanceFromPrototype(d)
				clusters[j].Add(ids[i])
				hits = append(hits, i)
			}

			perWorker[w] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var assigned []int
	for _, hits := range perWorker {
		assigned = append(assigned, hits...)
	}
	return assigned, nil
}

func (e *Engine) runBanded(ctx context.Context, clusters []*Cluster, ids []kmer.ID) ([]*Cluster, error) {
	n := len(ids)
	workers := e.cfg.Workers
	if n < workers {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	bandStart := func(b int) int { return b * n / workers }
	bandEnd := func(b int) int { return (b + 1) * n / workers }

	// Per-band setup. Each band gets its own RNG stream, deterministically
	// derived from the run seed, so bands shuffle independently without
	// sharing mutable RNG state.
	firstUnalloc := make([]int, workers)
	excluded := 0
	for b := 0; b < workers; b++ {
		firstUnalloc[b] = e.excludeUnclusterable(ids, bandStart(b), bandEnd(b))
		excluded += firstUnalloc[b] - bandStart(b)

		rng := rand.New(rand.NewSource(e.cfg.Seed + int64(b)))
		shuffle(rng, ids, firstUnalloc[b], bandEnd(b))
	}

	unallocated := func() int {
		total := 0
		for b := 0; b < workers; b++ {
			total += bandEnd(b) - firstUnalloc[b]
		}
		return total
	}

	firstCluster := 0
	increment := 0
	if len(clusters) == 0 {
		increment = e.cfg.ClusterIncrement
	}

	for remaining := unallocated(); remaining > 0; remaining = unallocated() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.logProgress(remaining, len(clusters))

		// Seed proportionally from every band's unassigned front, serially.
		if increment > 0 {
			for b := 0; b < workers; b++ {
				want := (b+1)*increment/workers - b*increment/workers
				clusters = e.seed(clusters, ids, firstUnalloc[b], bandEnd(b), want)
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		for b := 0; b < workers; b++ {
			g.Go(func() error {
				// Band-local compaction: the swap target and high-water
				// mark are touched by this worker only.
				end := bandEnd(b)
				for i := firstUnalloc[b]; i < end; i++ {
					if i%1024 == 0 {
						if err := gctx.Err(); err != nil {
							return err
						}
					}

					j, d := e.scan(clusters, ids[i], firstCluster)
					if j < 0 {
						continue
					}
					e.idx.Kmer(ids[i]).SetDistanceFromPrototype(d)
					clusters[j].Add(ids[i])

					if i > firstUnalloc[b] {
						ids[firstUnalloc[b]], ids[i] = ids[i], ids[firstUnalloc[b]]
					}
					firstUnalloc[b]++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if unallocated() == remaining {
			// No band made progress: no prototype attracts the residue.
			// Normal termination, mirroring the global variant.
			break
		}

		increment = e.cfg.ClusterIncrement
		firstCluster = len(clusters)
	}

	e.logger.Info("clustering done",
		slog.Int("clusters", len(clusters)),
		slog.Int("unassigned", unallocated()+excluded),
		slog.Int("excluded", excluded),
	)
	return clusters, nil
}
