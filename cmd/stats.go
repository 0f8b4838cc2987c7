package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/masht-bio/masht/pkg/logging"
	"github.com/masht-bio/masht/pkg/pcoa"
	"github.com/masht-bio/masht/pkg/stats"
)

var statsPcoa bool
var statsDims int
var statsSquare bool
var statsPlot string
var statsAnova bool
var statsManova bool
var statsGroups string
var statsFactors string
var statsPcs int
var statsSSType int
var statsCoords string

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVarP(&statsPcoa, "pcoa", "p", false, "run principal coordinate analysis on the input")
	statsCmd.Flags().IntVarP(&statsDims, "dims", "n", 0, "number of ordination axes to retain (default: number of samples, trailing degenerate axis dropped)")
	statsCmd.Flags().BoolVar(&statsSquare, "square", false, "input is an already-square distance matrix rather than a triangle table")
	statsCmd.Flags().StringVar(&statsPlot, "plot", "", "render a scatter of two ordination axes, e.g. 1,2")
	statsCmd.Flags().BoolVarP(&statsAnova, "anova", "a", false, "run per-axis ANOVA over the grouping factors")
	statsCmd.Flags().BoolVarP(&statsManova, "manova", "m", false, "run MANOVA over the grouping factors (requires Rscript)")
	statsCmd.Flags().StringVarP(&statsGroups, "groups", "g", "", "grouping table mapping sample id to factor values")
	statsCmd.Flags().StringVarP(&statsFactors, "factors", "f", "n", `factor selector: "n" (all columns), an integer k (first k columns), or "repeat"`)
	statsCmd.Flags().IntVar(&statsPcs, "pcs", 4, "number of leading coordinate axes to model (clipped to the axes present)")
	statsCmd.Flags().IntVar(&statsSSType, "ss-type", 2, "ANOVA sum-of-squares type (1, 2 or 3)")
	statsCmd.Flags().StringVar(&statsCoords, "coords", "", "explicit coordinates table for anova/manova, overriding one produced in this run")
}

var statsCmd = &cobra.Command{
	Use:   "stats <input>",
	Short: "ordination and grouped statistics over distance matrices",
	Long: `ordination and grouped statistics over distance matrices.

The input is a triangle table produced by 'masht mash -t' (or a square
distance matrix with --square), or, when only --anova/--manova are
requested, a coordinates table from an earlier run.

Stages run in a fixed order: pcoa, anova, manova. When pcoa runs in
the same invocation, anova and manova consume the coordinates table it
just wrote; pass --coords to consume an explicit table instead.

Example usage:
	masht stats sketches_triangle.txt -p -a -g groups.csv -o results/`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]

		var plotAxes []int
		if statsPlot != "" {
			parts := strings.Split(statsPlot, ",")
			if len(parts) != 2 {
				return fmt.Errorf("--plot wants two comma-separated axis numbers, got %q", statsPlot)
			}
			for _, p := range parts {
				ax, err := strconv.Atoi(strings.TrimSpace(p))
				if err != nil {
					return fmt.Errorf("bad --plot axis %q: %w", p, err)
				}
				plotAxes = append(plotAxes, ax)
			}
		}

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

		// ORDER MATTERS: anova/manova consume the coordinates written here
		var producedCoords string
		if statsPcoa {
			stage := pcoa.NewStage(outputDir, verbose)
			coords, err := stage.Run(input, statsDims, !statsSquare, plotAxes)
			report("pcoa", err)
			producedCoords = coords
		}

		coords := statsCoords
		if coords == "" {
			coords = producedCoords
		}
		if coords == "" {
			coords = input
		}

		if statsAnova || statsManova {
			if statsGroups == "" {
				return fmt.Errorf("--groups is required for anova/manova")
			}
		}

		if statsAnova {
			stage := stats.NewStage(outputDir, verbose)
			report("anova", stage.ANOVA(coords, statsGroups, statsFactors, statsPcs, statsSSType))
		}

		if statsManova {
			stage := stats.NewStage(outputDir, verbose)
			engine := &stats.REngine{Rscript: toolConfig.Rscript}
			report("manova", stage.MANOVA(coords, statsGroups, statsFactors, statsPcs, engine))
		}

		return firstErr
	},
}
