package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/masht-bio/masht/pkg/blaster"
	"github.com/masht-bio/masht/pkg/logging"
	"github.com/masht-bio/masht/pkg/paths"
)

var blasterFetch bool
var blasterIndex bool
var blasterIndexInput string
var blasterDBName string
var blasterDBType string
var blasterNoParseSeqids bool
var blasterRun bool
var blasterDBDir string
var blasterType string
var blasterEvalue float64
var blasterThreads int
var blasterOutfmt string
var blasterGoslim bool
var blasterGoFile string
var blasterJobs int
var blasterSplit bool
var blasterBlastFiles string
var blasterGoFiles string
var blasterMinIdentity float64

func init() {
	rootCmd.AddCommand(blasterCmd)

	blasterCmd.Flags().BoolVar(&blasterFetch, "fetch", false, "download annotation and sequence tables from BioMart")
	blasterCmd.Flags().BoolVar(&blasterIndex, "index", false, "build a blast database index")
	blasterCmd.Flags().StringVar(&blasterIndexInput, "index-input", "", "fasta file to index, overriding the sequences fetched in this run")
	blasterCmd.Flags().StringVar(&blasterDBName, "db-name", "masht_db", "name of the blast database")
	blasterCmd.Flags().StringVar(&blasterDBType, "db-type", "nucl", "blast database type (nucl or prot)")
	blasterCmd.Flags().BoolVar(&blasterNoParseSeqids, "no-parse-seqids", false, "do NOT pass -parse_seqids to makeblastdb")
	blasterCmd.Flags().BoolVar(&blasterRun, "run", false, "blast the input fasta files against the database")
	blasterCmd.Flags().StringVar(&blasterDBDir, "db-dir", "", "directory holding the blast database, overriding one built in this run")
	blasterCmd.Flags().StringVar(&blasterType, "blast-type", "blastn", "blast program to run")
	blasterCmd.Flags().Float64Var(&blasterEvalue, "evalue", 10e-50, "evalue threshold")
	blasterCmd.Flags().IntVar(&blasterThreads, "threads", 4, "blast threads per invocation")
	blasterCmd.Flags().StringVar(&blasterOutfmt, "outfmt", blaster.DefaultOutfmt, "blast tabular column list; must keep qseqid, sseqid and pident")
	blasterCmd.Flags().BoolVar(&blasterGoslim, "goslim", false, "split a GO mart table into per-GO-slim-term lists")
	blasterCmd.Flags().StringVar(&blasterGoFile, "go-file", "", "GO mart table, overriding the one fetched in this run")
	blasterCmd.Flags().IntVar(&blasterJobs, "jobs", 10, "parallel writers for the GO slim lists")
	blasterCmd.Flags().BoolVar(&blasterSplit, "split", false, "split blast results into per-GO-group filtered fasta files")
	blasterCmd.Flags().StringVar(&blasterBlastFiles, "blast-files", "", "blast output location, overriding results produced in this run")
	blasterCmd.Flags().StringVar(&blasterGoFiles, "go-files", "", "GO group list location, overriding lists produced in this run")
	blasterCmd.Flags().Float64Var(&blasterMinIdentity, "min-identity", 0, "minimum percent identity for a best hit to count")
}

var blasterCmd = &cobra.Command{
	Use:   "blaster <input>",
	Short: "BLAST alignment and GO-term sequence splitting",
	Long: `BLAST alignment and GO-term sequence splitting.

The input is the query fasta set: a directory, a manifest file, or a
single fasta file.

Stages run in a fixed order: fetch, index, run, goslim, split; each
later stage consumes the outputs of the earlier ones unless given an
explicit override. A failed fetch skips the dependent index stage.

Example usage:
	masht blaster transcripts/ --fetch --index --run --goslim --split -o results/`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		b := blaster.New(toolConfig, outputDir, verbose)

		var firstErr error
		report := func(stage string, err error) {
			if err == nil {
				return
			}
			logging.Error(stage+" stage failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}

		// ORDER MATTERS: each stage feeds the next unless overridden
		var fetched map[string]string
		if blasterFetch {
			var err error
			fetched, err = b.QueryBioMart()
			report("fetch", err)
		}

		if blasterIndex {
			indexInput := blasterIndexInput
			if indexInput == "" && fetched != nil {
				indexInput = fetched["seqs"]
			}
			if indexInput == "" {
				logging.Warn("index stage skipped: no sequences fetched and no --index-input given")
			} else {
				dir, err := b.CreateIndex(indexInput, blasterDBName, blasterDBType, blasterNoParseSeqids)
				report("index", err)
				if err == nil && blasterDBDir == "" {
					blasterDBDir = dir
				}
			}
		}

		var blastFiles []string
		if blasterRun {
			dbDir := blasterDBDir
			if dbDir == "" {
				dbDir = "."
			}
			var err error
			blastFiles, err = b.Run(input, blasterDBName, dbDir, blasterType, blasterEvalue, blasterThreads, blasterOutfmt)
			report("run", err)
		}

		var goLists []string
		if blasterGoslim {
			goFile := blasterGoFile
			if goFile == "" && fetched != nil {
				goFile = fetched["feats"]
			}
			if goFile == "" {
				return fmt.Errorf("--goslim needs --go-file or a successful --fetch")
			}
			var err error
			goLists, err = b.GoMartToGoSlimLists(goFile, blasterJobs)
			report("goslim", err)
		}

		if blasterSplit {
			splitBlast := blastFiles
			if blasterBlastFiles != "" {
				var err error
				splitBlast, err = paths.Resolve(blasterBlastFiles)
				if err != nil {
					return err
				}
			}
			splitGo := goLists
			if blasterGoFiles != "" {
				var err error
				splitGo, err = paths.Resolve(blasterGoFiles)
				if err != nil {
					return err
				}
			}

			if len(splitBlast) == 0 {
				return fmt.Errorf("--split needs --blast-files or a successful --run")
			}
			if len(splitGo) == 0 {
				return fmt.Errorf("--split needs --go-files or a successful --goslim")
			}

			report("split", b.SplitByGO(splitBlast, splitGo, input, blasterOutfmt, blasterMinIdentity))
		}

		return firstErr
	},
}
