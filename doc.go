// Package kmercodebook builds compressed k-mer vocabularies (codebooks)
// from biological sequence collections.
//
// A codebook is a set of clusters, each represented by a prototype k-mer:
// every member k-mer lies within a fixed distance threshold of its
// prototype under a similarity-matrix-derived distance. Clustering is
// incremental and greedy, so the cluster count emerges from the data
// instead of being fixed up front.
//
// # Quick Start
//
//	records, _ := fasta.ReadFile("db.fasta")
//	seqs := make([]*sequence.Sequence, len(records))
//	for i, rec := range records {
//		seqs[i] = rec.Sequence()
//	}
//
//	cb, _ := kmercodebook.New(6, 216)
//	result, _ := cb.Build(context.Background(), seqs, 10000)
//
//	f, _ := os.Create("protos.fasta")
//	_ = cb.SavePrototypes(f)
//
// The distance function, similarity matrix, scheduling variant and
// persistence compression are all configurable through options.
package kmercodebook
