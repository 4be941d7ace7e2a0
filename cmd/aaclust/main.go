// Command aaclust greedily clusters amino acid k-mers by substitution
// matrix distance, writing cluster prototypes as FASTA and cluster
// membership as delimited text.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/kmercodebook"
	"github.com/hupe1980/kmercodebook/cluster"
	"github.com/hupe1980/kmercodebook/distance"
	"github.com/hupe1980/kmercodebook/fasta"
	"github.com/hupe1980/kmercodebook/matrix"
	"github.com/hupe1980/kmercodebook/sequence"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aaclust: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		fastaFile  = flag.String("fasta", "", "FASTA file containing the sequences to be clustered (required)")
		protoIn    = flag.String("proto-in", "", "prototype FASTA file from a previous run, extended before new clusters are seeded")
		protoOut   = flag.String("proto-out", "", "output file for cluster prototypes (required)")
		clusterOut = flag.String("cluster-out", "", "output file for cluster membership (required)")
		wordLength = flag.Int("word-length", 32, "k-mer length used for tiling")
		threshold  = flag.Int("threshold", 0, "maximum prototype distance for cluster membership (required)")
		increment  = flag.Int("increment", 0, "new clusters seeded per pass; smaller values reduce prototype overlap (required)")
		matrixID   = flag.Int("matrix-id", 62, "BLOSUM matrix ID, one of 45, 50, 62, 80")
		matrixFile = flag.String("matrix-file", "", "custom similarity matrix file, overrides -matrix-id")
		dist       = flag.String("distance", "blosum-difference", "distance kind: blosum-difference, halperin or ungapped-edit")
		banded     = flag.Bool("banded", false, "use statically banded per-worker scheduling instead of the shared pool")
		seed       = flag.Int64("seed", 0, "random number seed")
		workers    = flag.Int("workers", 0, "parallel workers, 0 for all CPUs")
		compress   = flag.String("compress", "none", "output compression: none, gzip or lz4")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *fastaFile == "" || *protoOut == "" || *clusterOut == "" {
		flag.Usage()
		return fmt.Errorf("-fasta, -proto-out and -cluster-out are required")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := kmercodebook.NewTextLogger(level)

	mat, err := loadMatrix(*matrixFile, *matrixID)
	if err != nil {
		return err
	}

	kind, err := distanceKind(*dist)
	if err != nil {
		return err
	}

	compression, err := compressionMode(*compress)
	if err != nil {
		return err
	}

	variant := cluster.VariantGlobal
	if *banded {
		variant = cluster.VariantBanded
	}

	cb, err := kmercodebook.New(*wordLength, distance.Dist(*threshold),
		kmercodebook.WithMatrix(mat),
		kmercodebook.WithDistanceKind(kind),
		kmercodebook.WithVariant(variant),
		kmercodebook.WithSeed(*seed),
		kmercodebook.WithWorkers(*workers),
		kmercodebook.WithCompression(compression),
		kmercodebook.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if *protoIn != "" {
		f, err := os.Open(*protoIn)
		if err != nil {
			return err
		}
		if err := cb.LoadPrototypes(f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}

	records, err := fasta.ReadFile(*fastaFile)
	if err != nil {
		return err
	}
	seqs := make([]*sequence.Sequence, len(records))
	for i, rec := range records {
		seqs[i] = rec.Sequence()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := cb.Build(ctx, seqs, *increment)
	if err != nil {
		return err
	}
	logger.Info("clustering finished",
		"clusters", len(result.Clusters),
		"assignedInstances", result.AssignedInstances,
		"unassigned", result.Unassigned,
	)

	if err := writeTo(*protoOut, cb.SavePrototypes); err != nil {
		return err
	}
	return writeTo(*clusterOut, cb.SaveClusters)
}

func loadMatrix(file string, id int) (*matrix.Matrix, error) {
	if file == "" {
		return matrix.ByID(id)
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return matrix.Parse(f)
}

func distanceKind(name string) (distance.Kind, error) {
	switch name {
	case "blosum-difference":
		return distance.KindBlosumDifference, nil
	case "halperin":
		return distance.KindHalperin, nil
	case "ungapped-edit":
		return distance.KindUngappedEdit, nil
	default:
		return 0, fmt.Errorf("unknown distance kind %q", name)
	}
}

func compressionMode(name string) (kmercodebook.Compression, error) {
	switch name {
	case "none":
		return kmercodebook.CompressionNone, nil
	case "gzip":
		return kmercodebook.CompressionGzip, nil
	case "lz4":
		return kmercodebook.CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

func writeTo(path string, save func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
