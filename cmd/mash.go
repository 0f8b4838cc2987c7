package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/masht-bio/masht/pkg/logging"
	"github.com/masht-bio/masht/pkg/mash"
)

var mashSketch bool
var mashInfo bool
var mashBounds bool
var mashDistance bool
var mashTriangle bool
var mashPaste string
var mashScreen string
var mashUseSketch string
var mashRaw string

func init() {
	rootCmd.AddCommand(mashCmd)

	mashCmd.Flags().BoolVarP(&mashSketch, "sketch", "s", false, "generate mash sketches of selected files")
	mashCmd.Flags().BoolVarP(&mashInfo, "info", "i", false, "show information on selected sketch files")
	mashCmd.Flags().BoolVarP(&mashBounds, "bounds", "b", false, "show mash error bounds of selected files")
	mashCmd.Flags().BoolVarP(&mashDistance, "distance", "d", false, "calculate distance between selected files")
	mashCmd.Flags().BoolVarP(&mashTriangle, "triangle", "t", false, "generate matrix of distances in a sketch")
	mashCmd.Flags().StringVarP(&mashPaste, "paste", "p", "", "paste multiple sketch files into a new one with this name")
	mashCmd.Flags().StringVar(&mashScreen, "screen", "", "determine whether query sequences are within a sketch file")
	mashCmd.Flags().StringVar(&mashUseSketch, "use-sketch", "", "explicit sketch artifact for info/bounds/triangle/screen, overriding one produced in this run")
	mashCmd.Flags().StringVarP(&mashRaw, "mash", "m", "", "run mash with the given arguments as-is")
}

var mashCmd = &cobra.Command{
	Use:   "mash <input>",
	Short: "sketch, distance and screening operations via the mash binary",
	Long: `sketch, distance and screening operations via the mash binary.

The input is a directory of FASTA/FASTQ files, a manifest file listing
them, or a single .msh sketch artifact.

Stages run in a fixed order: sketch, info, bounds, distance, triangle,
paste, screen. When sketch runs in the same invocation, info, bounds,
triangle and screen consume the just-produced sketch artifact; pass
--use-sketch to consume an explicit artifact instead.

Example usage:
	masht mash genomes/ -s -t -o results/`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		p := mash.New(toolConfig.Mash, outputDir, verbose)

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

		// ORDER MATTERS: later stages consume the sketch produced here
		if mashSketch {
			_, err := p.Sketch(input)
			report("sketch", err)
		}

		if mashInfo {
			report("info", p.Info(p.Input(mashUseSketch, input)))
		}

		if mashBounds {
			report("bounds", p.Bounds(p.Input(mashUseSketch, input)))
		}

		if mashDistance {
			report("dist", p.Dist(input))
		}

		if mashTriangle {
			report("triangle", p.Triangle(p.Input(mashUseSketch, input)))
		}

		if mashPaste != "" {
			report("paste", p.Paste(input, mashPaste))
		}

		if mashScreen != "" {
			report("screen", p.Screen(p.Input(mashUseSketch, input), mashScreen))
		}

		if mashRaw != "" {
			report("mash", p.Raw(strings.Fields(mashRaw)))
		}

		return firstErr
	},
}
