package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/config"
	"github.com/tesseralab/tessera/internal/tiles"
	"github.com/tesseralab/tessera/internal/ui"
)

var (
	idxTileSide int
	idxKeep     bool
	idxJobs     int

	convDelete bool
	convJobs   int
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Maintain the tile library",
}

var tilesIndexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Build or refresh the tile index cache",
	Long: `Scan the tile directory, compute the average color of every tile, and
cache the results in the index store. Generations over an indexed library
skip the decode work entirely.

Stale cache entries (tiles that were renamed or removed) are pruned.

With no argument the manifest's tiles directory is indexed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTilesIndex,
}

var tilesConvertCmd = &cobra.Command{
	Use:   "convert [dir]",
	Short: "Convert HEIC photos to JPEG via ImageMagick",
	Long: `Convert every .heic/.heif file in the tile directory to JPEG so the
library can use photos exported straight from a phone.

Originals are moved into a .originals/ subdirectory unless
--delete-originals is set. Files whose .jpg already exists are skipped.

Requires ImageMagick (the magick or convert binary) on PATH.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTilesConvert,
}

func init() {
	rootCmd.AddCommand(tilesCmd)
	tilesCmd.AddCommand(tilesIndexCmd)
	tilesCmd.AddCommand(tilesConvertCmd)

	tilesIndexCmd.Flags().IntVar(&idxTileSide, "tile-side", 0, "pixel edge length of each tile (default: manifest tile_side)")
	tilesIndexCmd.Flags().BoolVarP(&idxKeep, "keep-going", "k", false, "skip unreadable tiles instead of failing")
	tilesIndexCmd.Flags().IntVarP(&idxJobs, "jobs", "j", 0, "worker count (default: number of CPUs)")

	tilesConvertCmd.Flags().BoolVar(&convDelete, "delete-originals", false, "delete HEIC originals instead of moving them to .originals/")
	tilesConvertCmd.Flags().IntVarP(&convJobs, "jobs", "j", 0, "worker count (default: number of CPUs)")
}

// tilesDir resolves the tile directory for a tiles subcommand: the
// positional argument when given, otherwise the manifest's tiles entry.
// The result is absolute so cache rows stay stable across working
// directories.
func tilesDir(args []string) (string, error) {
	var dir string
	if len(args) > 0 {
		dir = args[0]
	} else {
		m, mdir, err := loadManifest()
		if err != nil {
			return "", err
		}
		if m == nil {
			m = config.DefaultManifest()
		}
		dir = filepath.Join(mdir, m.Tiles)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving tiles dir: %w", err)
	}
	return abs, nil
}

func runTilesIndex(cmd *cobra.Command, args []string) error {
	dir, err := tilesDir(args)
	if err != nil {
		return err
	}

	side := idxTileSide
	if side == 0 {
		m, _, err := loadManifest()
		if err != nil {
			return err
		}
		if m != nil {
			side = m.TileSide
		}
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("opening index store: %w", err)
	}
	defer st.Close()

	bar := ui.NewBar(os.Stderr, 0, "indexing tiles")
	start := time.Now()

	lib, err := tiles.Load(cmd.Context(), dir, tiles.LoadOptions{
		TileSide:  side,
		KeepGoing: idxKeep,
		Workers:   idxJobs,
		Cache:     st,
		Progress: func(done, total int) {
			bar.SetTotal(total)
			bar.Set(done)
		},
	})
	bar.Finish()
	if err != nil {
		return err
	}

	pruned, err := st.PruneTiles(dir, lib.Paths())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(struct {
			Dir      string        `json:"dir"`
			Tiles    int           `json:"tiles"`
			TileSide int           `json:"tile_side"`
			Pruned   int64         `json:"pruned"`
			Duration time.Duration `json:"duration"`
		}{dir, len(lib.Tiles), lib.Side, pruned, elapsed})
	}

	fmt.Printf("%s indexed %d tiles at %d px in %s\n", ui.OKTag(), len(lib.Tiles), lib.Side, formatDuration(elapsed))
	if pruned > 0 {
		fmt.Printf("  pruned %d stale cache entries\n", pruned)
	}
	return nil
}

func runTilesConvert(cmd *cobra.Command, args []string) error {
	dir, err := tilesDir(args)
	if err != nil {
		return err
	}

	bar := ui.NewBar(os.Stderr, 0, "converting")
	report, err := tiles.Convert(cmd.Context(), dir, tiles.ConvertOptions{
		DeleteOriginals: convDelete,
		Workers:         convJobs,
		Progress: func(done, total int) {
			bar.SetTotal(total)
			bar.Set(done)
		},
	})
	bar.Finish()
	if err != nil {
		return err
	}

	if len(report.Converted) == 0 && len(report.Skipped) == 0 && len(report.Failed) == 0 {
		fmt.Printf("No HEIC files in %s\n", shortenPath(dir))
		return nil
	}

	if len(report.Converted) > 0 {
		fmt.Printf("%s converted %d files\n", ui.OKTag(), len(report.Converted))
	}
	if len(report.Skipped) > 0 {
		fmt.Printf("  skipped %d (target already exists)\n", len(report.Skipped))
	}
	if len(report.Failed) > 0 {
		fmt.Printf("%s %d files failed:\n", ui.FailTag(), len(report.Failed))
		for _, f := range report.Failed {
			fmt.Printf("  %s: %v\n", filepath.Base(f.Path), f.Err)
		}
		return fmt.Errorf("%d of %d conversions failed", len(report.Failed),
			len(report.Converted)+len(report.Failed))
	}
	return nil
}
