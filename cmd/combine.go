package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/dbd-scraper/internal/batch"
)

var (
	combineOutput         string
	combineNotFoundOutput string
	combineForce          bool
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Combine existing batch files into the output files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		if f.Changed("output") {
			cfg.Output.RevenueFile = combineOutput
		}
		if f.Changed("not-found-output") {
			cfg.Output.NotFoundFile = combineNotFoundOutput
		}
		if f.Changed("force") {
			cfg.Output.ForceOverwrite = combineForce
		}
		if err := cfg.Validate("combine"); err != nil {
			return err
		}

		_, err := batch.Combine(cfg.Output.BatchDir, batch.CombineOptions{
			RevenueOut:  cfg.Output.RevenueFile,
			NotFoundOut: cfg.Output.NotFoundFile,
			Force:       cfg.Output.ForceOverwrite,
		})
		return err
	},
}

func init() {
	combineCmd.Flags().StringVarP(&combineOutput, "output", "o", "", "combined financial output file")
	combineCmd.Flags().StringVar(&combineNotFoundOutput, "not-found-output", "", "combined not-found output file")
	combineCmd.Flags().BoolVarP(&combineForce, "force", "f", false, "overwrite outputs without a backup copy")
	rootCmd.AddCommand(combineCmd)
}
