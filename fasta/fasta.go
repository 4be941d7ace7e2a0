package fasta

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/hupe1980/kmercodebook/sequence"
)

// ErrNoHeader is returned when input contains residue data before the
// first '>' header.
var ErrNoHeader = errors.New("fasta: residues before first header")

var gzipMagic = []byte{0x1f, 0x8b}

// Record is one FASTA entry. ID is the first whitespace-delimited token
// of the header; Defline is the full header without the leading '>'.
type Record struct {
	ID       string
	Defline  string
	Residues []byte
}

// Sequence converts the record into an unencoded sequence.
func (r Record) Sequence() *sequence.Sequence {
	return sequence.New(r.ID, r.Residues)
}

// Parse reads all records from r. Residue lines belonging to one record
// are concatenated; blank lines are skipped.
func Parse(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []Record
	var cur *Record

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if line[0] == '>' {
			records = append(records, Record{})
			cur = &records[len(records)-1]
			cur.Defline = line[1:]
			if fields := strings.Fields(cur.Defline); len(fields) > 0 {
				cur.ID = fields[0]
			}
			continue
		}

		if cur == nil {
			return nil, ErrNoHeader
		}
		cur.Residues = append(cur.Residues, line...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("fasta: %w", err)
	}

	return records, nil
}

// Write emits records with one residue line each, the layout the
// downstream tools expect for k-mer sized entries.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		defline := rec.Defline
		if defline == "" {
			defline = rec.ID
		}
		if _, err := fmt.Fprintf(bw, ">%s\n%s\n", defline, rec.Residues); err != nil {
			return fmt.Errorf("fasta: %w", err)
		}
	}
	return bw.Flush()
}

// ReadFile parses a FASTA file, transparently decompressing gzip input
// regardless of file extension.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(len(gzipMagic))
	if err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("fasta: %w", err)
		}
		defer gz.Close()
		return Parse(gz)
	}

	return Parse(br)
}

// WriteFile writes records to path, gzip-compressed when the path ends
// in ".gz".
func WriteFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		if err := Write(gz, records); err != nil {
			gz.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("fasta: %w", err)
		}
		return f.Close()
	}

	if err := Write(f, records); err != nil {
		return err
	}
	return f.Close()
}
