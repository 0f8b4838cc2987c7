package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/masht-bio/masht/pkg/config"
	"github.com/masht-bio/masht/pkg/logging"
)

var outputDir string
var verbose bool
var configPath string

var toolConfig *config.Config

var (
	rootCmd = &cobra.Command{
		Use:     "masht",
		Short:   "mash distance toolkit",
		Long:    `mash distance toolkit: sketch-based genetic distances, PCoA ordination and grouped statistics, and BLAST/GO sequence splitting`,
		Version: "1.0.0",

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zapcore.InfoLevel
			if verbose {
				level = zapcore.DebugLevel
			}
			if err := logging.Init(level); err != nil {
				return err
			}

			var err error
			toolConfig, err = config.Load(configPath)
			if err != nil {
				return err
			}

			return os.MkdirAll(outputDir, 0755)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output_dir", "o", ".", "location of the output directory, created if absent")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "add more descriptions of performed actions")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML file with external tool locations")
}

// Execute executes the root command.
func Execute() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
