package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/config"
)

var (
	configInitOutput string
	configInitForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config.yaml",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeDefaultConfig(configInitOutput, configInitForce)
	},
}

func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return eris.Errorf("config init: %s already exists (use --force to overwrite)", path)
	}

	data, err := config.DefaultYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "config init: write file")
	}

	zap.L().Info("wrote default config", zap.String("path", path))
	return nil
}

func init() {
	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "config.yaml", "where to write the config file")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
