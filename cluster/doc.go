// Package cluster implements incremental greedy clustering of a k-mer
// index around prototype k-mers.
//
// The engine grows a cluster list in passes: each pass seeds a bounded
// batch of new prototypes from the unassigned pool, then scans every
// unassigned k-mer against the prototypes in parallel, assigning first-fit
// within a distance threshold. It terminates when the pool is empty or a
// pass makes no progress, which leaves a residue of unclusterable k-mers
// and is not an error.
//
// Two scheduling variants exist: global, where all workers drain one
// shared pool, and banded, where the pool is statically split into one
// contiguous band per worker.
package cluster
