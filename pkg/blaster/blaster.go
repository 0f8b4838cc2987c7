/*
Package blaster wraps the BLAST+ toolset: building a nucleotide or
protein database index, aligning query fasta files against it, and
partitioning the resulting hits into per-GO-term filtered fasta files.
*/
package blaster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/masht-bio/masht/pkg/config"
	"github.com/masht-bio/masht/pkg/fastaio"
	"github.com/masht-bio/masht/pkg/logging"
	"github.com/masht-bio/masht/pkg/paths"
	"github.com/masht-bio/masht/pkg/tools"
)

// DefaultOutfmt is the standard BLAST outfmt 6 column list. Any
// caller-supplied format must keep at least qseqid, sseqid and pident.
const DefaultOutfmt = "qseqid sseqid pident length mismatch gapopen qstart qend sstart send evalue bitscore"

// Blaster runs the BLAST+ workflow stages.
type Blaster struct {
	Config    *config.Config
	OutputDir string
	Verbose   bool
	Out       io.Writer
}

// New returns a Blaster writing console output to stdout.
func New(conf *config.Config, outputDir string, verbose bool) *Blaster {
	return &Blaster{Config: conf, OutputDir: outputDir, Verbose: verbose, Out: os.Stdout}
}

// CreateIndex builds a BLAST database from a fasta file, in the
// file's own directory, and returns that directory.
func (b *Blaster) CreateIndex(inputFile, name, dbType string, noParseSeqids bool) (string, error) {
	fmt.Fprintf(b.Out, "Creating blast index for %s ...\n", inputFile)

	dir := filepath.Dir(inputFile)

	args := []string{
		"-in", filepath.Base(inputFile),
		"-dbtype", dbType,
		"-title", name,
		"-out", name,
		"-blastdb_version", "5",
	}
	if !noParseSeqids {
		args = append(args, "-parse_seqids")
	}

	res, err := tools.Run(dir, b.Config.BlastTool("makeblastdb"), args...)
	if err != nil {
		return "", fmt.Errorf("makeblastdb: %w", err)
	}
	if b.Verbose {
		fmt.Fprintf(b.Out, "%s", res.Stdout)
	}
	if err := res.Check("makeblastdb"); err != nil {
		fmt.Fprintf(b.Out, "%s", res.Stderr)
		return "", err
	}

	return dir, nil
}

// Run aligns every query file in the resolved input set against the
// named database, one invocation per file, and returns the paths of
// the tabular output files. outfmt is the bare column list; the
// tabular format type is prepended for the blast invocation.
func (b *Blaster) Run(input, db, dbDir, blastType string, evalue float64, numThreads int, outfmt string) ([]string, error) {
	logging.Info("running blast", zap.String("input", input), zap.String("db", db))

	files, err := paths.Resolve(input)
	if err != nil {
		return nil, err
	}

	var outFiles []string
	for _, file := range files {
		fmt.Fprintf(b.Out, "BLASTing %s...\n", file)

		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}

		outName := paths.Stem(file) + ".blast"
		res, err := tools.Run(dbDir, b.Config.BlastTool(blastType),
			"-query", abs,
			"-db", db,
			"-out", outName,
			"-evalue", strconv.FormatFloat(evalue, 'g', -1, 64),
			"-num_threads", strconv.Itoa(numThreads),
			"-outfmt", "6 "+outfmt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", blastType, err)
		}
		if err := res.Check(blastType); err != nil {
			fmt.Fprintf(b.Out, "%s", res.Stderr)
			return nil, err
		}
		if b.Verbose {
			fmt.Fprintf(b.Out, "%s", res.Stdout)
		}

		outFiles = append(outFiles, filepath.Join(dbDir, outName))
	}

	return outFiles, nil
}

// GoMartToGoSlimLists splits a GO mart table (tab-separated, last
// column the GO-slim grouping key) into one CSV per GO-slim term
// under <output>/go_csvs, written in parallel. The returned paths are
// sorted by term.
func (b *Blaster) GoMartToGoSlimLists(goFile string, nJobs int) ([]string, error) {
	fmt.Fprintf(b.Out, "Creating GO slim lists from %s...\n", goFile)

	f, err := os.Open(goFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true

	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", goFile, err)
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("%s: no annotation rows", goFile)
	}

	header := all[0]
	keyCol := len(header) - 1

	groups := make(map[string][][]string)
	for _, row := range all[1:] {
		key := row[keyCol]
		groups[key] = append(groups[key], row)
	}

	outDir := filepath.Join(b.OutputDir, "go_csvs")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	terms := make([]string, 0, len(groups))
	for term := range groups {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	outPaths := make([]string, len(terms))

	var g errgroup.Group
	g.SetLimit(nJobs)
	for i, term := range terms {
		i, term := i, term
		g.Go(func() error {
			out := filepath.Join(outDir, sanitizeTerm(term)+".csv")
			if err := writeCSV(out, header, groups[term]); err != nil {
				return fmt.Errorf("GO term %q: %w", term, err)
			}
			outPaths[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outPaths, nil
}

// SplitByGO partitions blast results by GO group: for every GO group
// file and every blast table, the queries whose highest-identity hit
// passes minIdentity and lands on a group member are written to
// <output>/<term>/filtered_<stem>.fasta. Groups that select nothing
// write no file.
func (b *Blaster) SplitByGO(blastFiles, goFiles []string, seqsInput, outfmt string, minIdentity float64) error {
	if b.Verbose {
		fmt.Fprintln(b.Out, "Splitting blast results by GOs...")
	}

	cols := strings.Fields(outfmt)
	// tolerate a column list still carrying the leading format type
	if len(cols) > 0 {
		if _, err := strconv.Atoi(cols[0]); err == nil {
			cols = cols[1:]
		}
	}
	qCol := slices.Index(cols, "qseqid")
	sCol := slices.Index(cols, "sseqid")
	pCol := slices.Index(cols, "pident")
	if qCol < 0 || sCol < 0 || pCol < 0 {
		return fmt.Errorf("outfmt must contain qseqid, sseqid and pident, got %q", outfmt)
	}

	seqsFiles, err := paths.Resolve(seqsInput)
	if err != nil {
		return err
	}

	for _, goFile := range goFiles {
		members, err := readMembership(goFile)
		if err != nil {
			return err
		}

		term := paths.Stem(goFile)
		if b.Verbose {
			fmt.Fprintf(b.Out, "Splitting %s file with %d IDs...\n", term, len(members))
		}

		termDir := filepath.Join(b.OutputDir, term)
		if err := os.MkdirAll(termDir, 0755); err != nil {
			return err
		}

		for _, blastFile := range blastFiles {
			if b.Verbose {
				fmt.Fprintf(b.Out, "Processing %s file...\n", paths.Stem(blastFile))
			}

			ids, err := bestHitsInGroup(blastFile, qCol, sCol, pCol, members, minIdentity)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				logging.Debug("no sequences selected", zap.String("term", term), zap.String("blast", blastFile))
				continue
			}

			seqFile, err := matchingSeqFile(seqsFiles, blastFile)
			if err != nil {
				return err
			}
			seqs, err := readFastaMap(seqFile)
			if err != nil {
				return err
			}

			out := filepath.Join(termDir, "filtered_"+paths.Stem(blastFile)+".fasta")
			if err := writeFiltered(out, ids, seqs); err != nil {
				return err
			}
		}
	}

	return nil
}

// readMembership builds the GeneID|TranscriptID member set of one GO
// group CSV.
func readMembership(goFile string) (map[string]bool, error) {
	f, err := os.Open(goFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", goFile, err)
	}
	if len(all) < 1 {
		return nil, fmt.Errorf("%s: empty GO group file", goFile)
	}

	header := all[0]
	geneCol := slices.Index(header, "Gene stable ID")
	txCol := slices.Index(header, "Transcript stable ID")
	if geneCol < 0 || txCol < 0 {
		return nil, fmt.Errorf("%s: missing Gene stable ID / Transcript stable ID columns", goFile)
	}

	members := make(map[string]bool)
	for _, row := range all[1:] {
		members[row[geneCol]+"|"+row[txCol]] = true
	}
	return members, nil
}

// bestHitsInGroup reads one blast tabular file and returns, in first
// appearance order, the query ids whose best hit (highest percent
// identity) reaches minIdentity and lands on a group member.
func bestHitsInGroup(blastFile string, qCol, sCol, pCol int, members map[string]bool, minIdentity float64) ([]string, error) {
	f, err := os.Open(blastFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type hit struct {
		subject string
		pident  float64
	}
	best := make(map[string]hit)
	var order []string

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", blastFile, err)
		}
		if len(row) <= qCol || len(row) <= sCol || len(row) <= pCol {
			return nil, fmt.Errorf("%s: row with %d fields does not fit the outfmt", blastFile, len(row))
		}

		p, err := strconv.ParseFloat(row[pCol], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad pident %q: %w", blastFile, row[pCol], err)
		}

		q := row[qCol]
		prev, ok := best[q]
		if !ok {
			order = append(order, q)
		}
		if !ok || p > prev.pident {
			best[q] = hit{subject: row[sCol], pident: p}
		}
	}

	var ids []string
	for _, q := range order {
		h := best[q]
		if h.pident >= minIdentity && members[h.subject] {
			ids = append(ids, q)
		}
	}
	return ids, nil
}

// matchingSeqFile finds the sequence file whose stem matches the
// blast file's stem.
func matchingSeqFile(seqsFiles []string, blastFile string) (string, error) {
	want := paths.Stem(blastFile)
	for _, f := range seqsFiles {
		if paths.Stem(f) == want {
			return f, nil
		}
	}
	return "", fmt.Errorf("no sequence file with stem %q for blast output %s", want, blastFile)
}

func readFastaMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fastaio.ReadMap(f)
}

func writeFiltered(path string, ids []string, seqs map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, id := range ids {
		seq, ok := seqs[id]
		if !ok {
			return fmt.Errorf("query %s has no sequence in the fasta input", id)
		}
		if err := fastaio.WriteRecord(f, id, seq); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// sanitizeTerm makes a GO term usable as a file name.
func sanitizeTerm(term string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, term)
}
