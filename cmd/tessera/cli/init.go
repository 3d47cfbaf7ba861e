package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/ui"
)

// starterManifest is written by tessera init. The run/run-debug aliases
// cover the common invocation so projects only ever type the mosaic size.
const starterManifest = `# tessera project manifest
tiles: tiles        # directory of tile photos
input: input        # source image the mosaic depicts
output: mosaic.png
tile_side: 26       # pixel edge length of each tile
size: 128           # mosaic edge length in tiles

tasks:
  run:
    description: generate the mosaic at the given size
    params: [side]
    command: tessera generate -i input -t tiles -k -m {{side}}
  run-debug:
    description: generate with verbose logging
    params: [side]
    command: tessera --verbose generate -i input -t tiles -k -m {{side}}
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter tessera.yaml",
	Long: `Write a starter tessera.yaml into the current directory (or --config).

The starter manifest wires the conventional layout: tile photos in tiles/,
the source image at input, and run/run-debug task aliases. Refuses to
overwrite an existing manifest.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := manifestDir()
	path := filepath.Join(dir, "tessera.yaml")

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}

	if dryRun {
		fmt.Printf("Would write %s\n", path)
		return nil
	}

	if err := os.WriteFile(path, []byte(starterManifest), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("%s wrote %s\n", ui.OKTag(), path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Fill tiles/ with photos (tessera tiles convert handles HEIC)")
	fmt.Println("  2. Drop the source image at input")
	fmt.Println("  3. tessera run run 128")
	return nil
}
