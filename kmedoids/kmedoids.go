package kmedoids

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/kmercodebook/cluster"
	"github.com/hupe1980/kmercodebook/distance"
	"github.com/hupe1980/kmercodebook/kmer"
	"github.com/hupe1980/kmercodebook/sequence"
)

// ErrNoWindows is returned when Partition receives an empty domain.
var ErrNoWindows = errors.New("kmedoids: no sequence windows")

// SortMode controls the order in which windows are tried as seed
// sequences.
type SortMode int

const (
	SortRandom SortMode = iota + 1
	SortLongestFirst
	SortShortestFirst
)

// SelectMode controls how a k-mer picks among candidate medoids.
type SelectMode int

const (
	// SelectGreedy takes the first medoid within the threshold.
	SelectGreedy SelectMode = iota + 1

	// SelectNearest takes the closest medoid, still subject to the
	// threshold.
	SelectNearest
)

// MedoidMode controls how cluster medoids are recomputed between
// assignment rounds.
type MedoidMode int

const (
	// MedoidBruteForce always evaluates every candidate exactly.
	MedoidBruteForce MedoidMode = iota + 1

	// MedoidMeddit uses the bandit-based MEDDIT estimator for clusters
	// larger than MinMedditSize and falls back to exact below that.
	MedoidMeddit

	// MedoidNone keeps the seed prototypes fixed.
	MedoidNone
)

// Config holds the refinement parameters.
type Config struct {
	// Trials is the maximum number of seed windows tried. The trial with
	// the most assigned k-mer instances wins.
	Trials int

	// Iterations is the number of assign/update rounds per trial.
	Iterations int

	// MinMedditSize is the cluster size above which MedoidMeddit switches
	// from exact evaluation to the bandit estimator.
	MinMedditSize int

	// Threshold is the maximum medoid distance for assignment. K-mers
	// farther than this from every medoid stay unassigned.
	Threshold distance.Dist

	SortMode   SortMode
	SelectMode SelectMode
	MedoidMode MedoidMode

	// Workers bounds the parallel medoid updates. Defaults to GOMAXPROCS.
	Workers int

	Seed int64

	Logger *slog.Logger
}

// DefaultConfig returns the standard refinement parameters. Threshold
// must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		Trials:        40,
		Iterations:    3,
		MinMedditSize: 1000,
		SortMode:      SortRandom,
		SelectMode:    SelectNearest,
		MedoidMode:    MedoidMeddit,
		Workers:       runtime.GOMAXPROCS(0),
	}
}

// Refiner partitions the k-mers of a bounded window collection, assumed
// to cover one domain family, into clusters around medoid k-mers. The
// cluster count is not fixed in advance: each trial seeds one candidate
// medoid per distinct k-mer of a seed window, and the trial assigning the
// most k-mer instances wins.
type Refiner struct {
	table   *distance.PackedTable
	factory cluster.Factory
	cfg     Config
	logger  *slog.Logger
}

// NewRefiner creates a refiner. The factory materializes the winning
// medoids as persistent prototypes and is only called serially.
func NewRefiner(table *distance.PackedTable, factory cluster.Factory, cfg Config) (*Refiner, error) {
	if cfg.Trials < 1 {
		cfg.Trials = 1
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Refiner{table: table, factory: factory, cfg: cfg, logger: logger}, nil
}

// dead marks a candidate medoid slot whose cluster emptied out.
const dead = kmer.ID(-1)

type trialState struct {
	protos   []kmer.ID   // candidate medoids, dead when emptied
	members  [][]kmer.ID // assignment per candidate
	assigned int         // instance total over assigned k-mers
	distinct int         // distinct k-mers assigned in the last round
}

// Partition clusters every k-mer of the windows. It returns one cluster
// per surviving candidate medoid of the best trial; k-mers beyond the
// threshold of every medoid are left out.
func (r *Refiner) Partition(ctx context.Context, windows []sequence.Window, kmerLength int) ([]*cluster.Cluster, error) {
	if len(windows) == 0 {
		return nil, ErrNoWindows
	}

	idx, err := kmer.NewWindowIndex(windows, kmerLength)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(r.cfg.Seed))
	ordered := r.orderWindows(windows, rng)

	trials := r.cfg.Trials
	if trials > len(ordered) {
		trials = len(ordered)
	}

	var best trialState
	for trial := 0; trial < trials; trial++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state, err := r.runTrial(ctx, idx, ordered[trial], trial, kmerLength)
		if err != nil {
			return nil, err
		}

		r.logger.Debug("kmedoids trial",
			slog.Int("trial", trial),
			slog.Int("assigned", state.assigned),
			slog.Int("best", best.assigned),
		)

		if state.assigned > best.assigned {
			best = state
		}
	}

	clusters := make([]*cluster.Cluster, 0, len(best.protos))
	for k, proto := range best.protos {
		if proto == dead || len(best.members[k]) == 0 {
			continue
		}
		c := cluster.New(r.factory(idx.Kmer(proto)), idx)
		for _, id := range best.members[k] {
			c.Add(id)
		}
		clusters = append(clusters, c)
	}

	r.logger.Info("partition complete",
		slog.Int("clusters", len(clusters)),
		slog.Int("assignedInstances", best.assigned),
		slog.Int("assignedKmers", best.distinct),
		slog.Int("distinctKmers", idx.Len()),
	)

	return clusters, nil
}

// orderWindows returns the seed-trial order without mutating the caller's
// slice.
func (r *Refiner) orderWindows(windows []sequence.Window, rng *rand.Rand) []sequence.Window {
	ordered := append([]sequence.Window(nil), windows...)
	if len(ordered) < 2 {
		return ordered
	}

	switch r.cfg.SortMode {
	case SortLongestFirst:
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq.Len() > ordered[j].Seq.Len() })
	case SortShortestFirst:
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq.Len() < ordered[j].Seq.Len() })
	default:
		rng.Shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	}
	return ordered
}

func (r *Refiner) runTrial(ctx context.Context, idx *kmer.Index, seed sequence.Window, trial, kmerLength int) (trialState, error) {
	// Every distinct k-mer of the seed window starts as a candidate
	// medoid. The seed's k-mers necessarily appear in the main index, so
	// candidates are plain index IDs throughout.
	seedIdx, err := kmer.NewWindowIndex([]sequence.Window{seed}, kmerLength)
	if err != nil {
		return trialState{}, err
	}

	state := trialState{
		protos:  make([]kmer.ID, 0, seedIdx.Len()),
		members: make([][]kmer.ID, seedIdx.Len()),
	}
	for _, sid := range seedIdx.IDs() {
		id, ok := idx.Lookup(seedIdx.Kmer(sid).Word())
		if !ok {
			return trialState{}, errors.New("kmedoids: seed k-mer missing from index")
		}
		state.protos = append(state.protos, id)
	}

	nk := len(state.protos)
	dSum := make([]uint64, nk)
	dSumSq := make([]uint64, nk)
	assignedSet := bitset.New(uint(idx.Len()))

	for iter := 0; iter < r.cfg.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return trialState{}, err
		}

		state.assigned = 0
		assignedSet.ClearAll()
		for k := range state.members {
			state.members[k] = state.members[k][:0]
			dSum[k] = 0
			dSumSq[k] = 0
		}

		r.assign(idx, &state, dSum, dSumSq, assignedSet, kmerLength)
		state.distinct = int(assignedSet.Count())

		r.logger.Debug("assignment round",
			slog.Int("trial", trial),
			slog.Int("iteration", iter),
			slog.Int("distinct", state.distinct),
			slog.Int("instances", state.assigned),
		)

		if r.cfg.MedoidMode == MedoidNone {
			continue
		}
		if err := r.updateMedoids(ctx, idx, &state, dSum, dSumSq, trial, kmerLength); err != nil {
			return trialState{}, err
		}
	}

	return state, nil
}

// assign distributes every indexed k-mer to a candidate medoid, greedy or
// nearest per SelectMode. Assignments accumulate the per-cluster distance
// moments used to estimate sigma for MEDDIT.
func (r *Refiner) assign(idx *kmer.Index, state *trialState, dSum, dSumSq []uint64, assignedSet *bitset.BitSet, kmerLength int) {
	for _, id := range idx.IDs() {
		code := idx.Kmer(id).Code()

		bestK := -1
		bestDist := distance.MaxDist

		for k, proto := range state.protos {
			if proto == dead {
				continue
			}
			protoCode := idx.Kmer(proto).Code()

			if r.cfg.SelectMode == SelectGreedy {
				if d, ok := r.table.IsWithin(code, protoCode, kmerLength, r.cfg.Threshold); ok {
					bestK, bestDist = k, d
					break
				}
				continue
			}

			if d := r.table.Distance(code, protoCode, kmerLength); d < bestDist {
				bestK, bestDist = k, d
			}
		}

		if bestK < 0 || bestDist > r.cfg.Threshold {
			continue
		}

		state.members[bestK] = append(state.members[bestK], id)
		state.assigned += idx.Kmer(id).InstanceCount()
		assignedSet.Set(uint(id))
		dSum[bestK] += uint64(bestDist)
		dSumSq[bestK] += uint64(bestDist) * uint64(bestDist)
	}
}

// updateMedoids recomputes each candidate medoid from its members, exact
// for small clusters and MEDDIT for large ones. Clusters are independent,
// so updates fan out across workers; each cluster draws from its own
// deterministic random stream.
func (r *Refiner) updateMedoids(ctx context.Context, idx *kmer.Index, state *trialState, dSum, dSumSq []uint64, trial, kmerLength int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for k := range state.protos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			members := state.members[k]
			n := len(members)

			switch {
			case n == 0:
				state.protos[k] = dead
			case n == 1:
				state.protos[k] = members[0]
			case r.cfg.MedoidMode == MedoidBruteForce || n <= r.cfg.MinMedditSize:
				state.protos[k] = r.exactMedoid(idx, members, kmerLength)
			default:
				mu := float64(dSum[k]) / float64(n)
				sigma := math.Sqrt(float64(dSumSq[k])/float64(n) - mu*mu)
				rng := rand.New(rand.NewSource(r.cfg.Seed + int64(trial)<<32 + int64(k)))
				state.protos[k] = r.medditMedoid(idx, members, sigma, rng, kmerLength)
			}
			return nil
		})
	}
	return g.Wait()
}

// exactMedoid returns the member minimizing the total distance to all
// members, by full pairwise evaluation.
func (r *Refiner) exactMedoid(idx *kmer.Index, members []kmer.ID, kmerLength int) kmer.ID {
	best := members[0]
	bestTotal := uint64(math.MaxUint64)

	for _, cand := range members {
		code := idx.Kmer(cand).Code()
		var total uint64
		for _, other := range members {
			total += uint64(r.table.Distance(code, idx.Kmer(other).Code(), kmerLength))
		}
		if total < bestTotal {
			best, bestTotal = cand, total
		}
	}
	return best
}

// medditMedoid approximates the medoid with the MEDDIT bandit algorithm
// of Bagaria et al.: maintain a confidence interval around each member's
// estimated mean distance, repeatedly refine the member with the lowest
// lower bound, and stop once no other member's lower bound undercuts the
// leader's upper bound.
func (r *Refiner) medditMedoid(idx *kmer.Index, members []kmer.ID, sigma float64, rng *rand.Rand, kmerLength int) kmer.ID {
	const delta = 1e-2
	confidence := func(n int) float64 {
		return sigma * math.Sqrt(2*math.Log(2/delta)/float64(n))
	}

	nk := len(members)
	sum := make([]uint64, nk)
	count := make([]int, nk)
	lower := make([]float64, nk)
	upper := make([]float64, nk)

	dist := func(i, j int) uint64 {
		return uint64(r.table.Distance(idx.Kmer(members[i]).Code(), idx.Kmer(members[j]).Code(), kmerLength))
	}

	// One random pull per arm to initialize the intervals.
	for i := 0; i < nk; i++ {
		j := i
		for j == i {
			j = rng.Intn(nk)
		}
		sum[i] = dist(i, j)
		count[i] = 1

		mu := float64(sum[i])
		conf := confidence(1)
		lower[i] = mu - conf
		upper[i] = mu + conf
	}

	for {
		// Pull the arm with the most promising lower bound.
		turn := 0
		for i := 1; i < nk; i++ {
			if lower[i] < lower[turn] {
				turn = i
			}
		}

		if count[turn] < nk-1 {
			j := turn
			for j == turn {
				j = rng.Intn(nk)
			}
			sum[turn] += dist(turn, j)
			count[turn]++

			mu := float64(sum[turn]) / float64(count[turn])
			conf := confidence(count[turn])
			lower[turn] = mu - conf
			upper[turn] = mu + conf
		} else {
			// Exhausted the budget for this arm: evaluate it exactly and
			// collapse its interval.
			sum[turn] = 0
			for j := 0; j < nk; j++ {
				if j != turn {
					sum[turn] += dist(turn, j)
				}
			}
			count[turn] = nk - 1

			mu := float64(sum[turn]) / float64(nk-1)
			lower[turn] = mu
			upper[turn] = mu
		}

		done := true
		for j := 0; j < nk; j++ {
			if j != turn && lower[j] < upper[turn] {
				done = false
				break
			}
		}
		if done {
			return members[turn]
		}
	}
}
