// Package cli implements the tessera command-line interface using Cobra.
// It provides commands for generating mosaics, maintaining the tile
// library, and running manifest tasks.
package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/config"
	"github.com/tesseralab/tessera/internal/log"
)

var (
	verbose   bool
	dryRun    bool
	jsonOut   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Tessera - photo mosaics built from your own picture library",
	Long: `Tessera renders a source image as a mosaic of photo tiles.
Point it at a directory of pictures and an input image and it scales,
indexes, and matches tiles to rebuild the input one photo per cell.

Core promise: tessera generate -i input -t tiles -m 128 just works.
The tile index is cached, repeat runs are fast, and every generation
is recorded for later inspection.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load global config for debug settings
		globalCfg, _ := config.LoadGlobal()
		debugDir := filepath.Join(config.GlobalConfigDir(), "debug")

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			DebugDir:      debugDir,
			RetentionDays: globalCfg.Debug.RetentionDays,
		}); err != nil {
			// Log init failure is non-fatal - fallback to default logger
			// Just print to stderr since logging may not be working
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would happen without executing")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing tessera.yaml (default: current directory)")
}

// manifestDir returns the directory tessera.yaml is looked up in.
func manifestDir() string {
	if configDir != "" {
		return configDir
	}
	return "."
}
