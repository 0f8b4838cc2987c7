package cmd

import (
	"github.com/spf13/cobra"

	"github.com/masht-bio/masht/pkg/batch"
)

var batchWorkers int
var batchSymmetric bool

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "worker pool size (default: one per CPU)")
	batchCmd.Flags().BoolVar(&batchSymmetric, "symmetric", false, "exclude directories with fewer qualifying files than the largest group")
}

var batchCmd = &cobra.Command{
	Use:   "batch <root>",
	Short: "run the sketch/triangle/PCoA chain over many subdirectories",
	Long: `run the sketch/triangle/PCoA chain over many subdirectories.

Every subdirectory of the root holding FASTA/FASTQ files is processed
independently on a bounded worker pool; one directory's failure is
logged and does not stop its siblings. Each directory's results go to
<output_dir>/<directory name>/.

Example usage:
	masht batch populations/ --symmetric -o results/`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return batch.AnalyzeAll(args[0], batch.Options{
			Config:          toolConfig,
			OutputDir:       outputDir,
			Verbose:         verbose,
			Workers:         batchWorkers,
			EnforceSymmetry: batchSymmetric,
		})
	},
}
