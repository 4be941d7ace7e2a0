// Package kmedoids partitions the k-mers of a bounded window collection
// into clusters around medoid k-mers.
//
// Unlike classic k-medoids the cluster count is not fixed up front: each
// trial seeds one candidate medoid per distinct k-mer of a seed window and
// lets empty candidates die off; the trial assigning the most k-mer
// instances wins. Medoid updates are exact for small clusters and switch
// to the MEDDIT bandit estimator (Bagaria et al.) above a size cutoff.
package kmedoids
