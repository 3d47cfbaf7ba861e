package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/config"
	"github.com/tesseralab/tessera/internal/log"
	"github.com/tesseralab/tessera/internal/mosaic"
	"github.com/tesseralab/tessera/internal/ui"
)

var (
	genInput    string
	genTiles    string
	genOutput   string
	genSize     int
	genTileSide int
	genKeep     bool
	genNoCache  bool
	genJobs     int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render the input image as a photo mosaic",
	Long: `Render the input image as a mosaic of photo tiles.

The input is scaled to size×size pixels and every pixel becomes one tile,
chosen from the tile directory by nearest average color. Tile averages are
cached in the index store, so repeat runs over the same library skip the
decode work.

Flag defaults come from tessera.yaml when one exists in the current
directory (or --config); flags always win.

Examples:
  # Everything from the manifest
  tessera generate

  # Explicit paths, 128×128 tiles across
  tessera generate -i holiday.jpg -t photos/ -m 128

  # Skip unreadable tiles instead of failing
  tessera generate -k

  # Force a full re-index of the tile library
  tessera generate --no-cache`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addGenerateFlags(generateCmd)
}

func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&genInput, "input", "i", "", "source image to render (default: manifest input)")
	cmd.Flags().StringVarP(&genTiles, "tiles", "t", "", "directory of tile images (default: manifest tiles)")
	cmd.Flags().StringVarP(&genOutput, "output", "o", "", "output path (default: manifest output)")
	cmd.Flags().IntVarP(&genSize, "mosaic-size", "m", 0, "mosaic edge length in tiles (default: manifest size)")
	cmd.Flags().IntVar(&genTileSide, "tile-side", 0, "pixel edge length of each tile (default: manifest tile_side)")
	cmd.Flags().BoolVarP(&genKeep, "keep-going", "k", false, "skip unreadable tiles instead of failing")
	cmd.Flags().BoolVar(&genNoCache, "no-cache", false, "bypass the tile index cache")
	cmd.Flags().IntVarP(&genJobs, "jobs", "j", 0, "worker count (default: number of CPUs)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	m, dir, err := loadManifest()
	if err != nil {
		return err
	}

	opts := generateOptions(cmd, m, dir)

	if dryRun {
		fmt.Printf("Would generate %d×%d mosaic\n", opts.GridSide, opts.GridSide)
		fmt.Printf("  input:  %s\n", opts.Input)
		fmt.Printf("  tiles:  %s\n", opts.TilesDir)
		fmt.Printf("  output: %s\n", opts.OutputPath)
		fmt.Printf("  tile side: %d px\n", opts.TileSide)
		return nil
	}

	st, err := openStore()
	if err != nil {
		// No store means no cache and no history; the mosaic itself is
		// unaffected.
		ui.Warnf("index store unavailable, continuing without cache: %v", err)
		log.Warn("opening store", "error", err)
	} else {
		opts.Store = st
		defer st.Close()
	}

	progress := newStageProgress()
	opts.Progress = progress.update
	defer progress.finish()

	res, err := mosaic.Generate(cmd.Context(), opts)
	if err != nil {
		return err
	}
	progress.finish()

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(res)
	}

	fmt.Printf("%s %s (%s)\n", ui.OKTag(), res.OutputPath, res.Name)
	fmt.Printf("  %d×%d tiles from a library of %d, %d distinct colors, %s\n",
		res.GridSide, res.GridSide, res.TileCount, res.DistinctColors,
		formatDuration(res.Duration))
	return nil
}

// generateOptions resolves engine options from flags and the manifest.
// Unset flags fall back to manifest values; manifest paths resolve relative
// to the manifest directory.
func generateOptions(cmd *cobra.Command, m *config.Manifest, dir string) mosaic.Options {
	if m == nil {
		m = config.DefaultManifest()
	}

	opts := mosaic.Options{
		Input:      filepath.Join(dir, m.Input),
		TilesDir:   filepath.Join(dir, m.Tiles),
		OutputPath: filepath.Join(dir, m.Output),
		GridSide:   m.Size,
		TileSide:   m.TileSide,
		KeepGoing:  m.KeepGoing,
		Workers:    genJobs,
		NoCache:    genNoCache,
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		opts.Input = genInput
	}
	if flags.Changed("tiles") {
		opts.TilesDir = genTiles
	}
	if flags.Changed("output") {
		opts.OutputPath = genOutput
	}
	if flags.Changed("mosaic-size") {
		opts.GridSide = genSize
	}
	if flags.Changed("tile-side") {
		opts.TileSide = genTileSide
	}
	if flags.Changed("keep-going") {
		opts.KeepGoing = genKeep
	}
	return opts
}

// stageProgress renders one progress bar per engine stage on stderr.
type stageProgress struct {
	mu     sync.Mutex
	stage  mosaic.Stage
	bar    *ui.Bar
	labels map[mosaic.Stage]string
}

func newStageProgress() *stageProgress {
	return &stageProgress{
		labels: map[mosaic.Stage]string{
			mosaic.StageTiles:    "indexing tiles",
			mosaic.StageMatch:    "matching colors",
			mosaic.StageAssemble: "assembling",
		},
	}
}

func (p *stageProgress) update(stage mosaic.Stage, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if stage != p.stage {
		if p.bar != nil {
			p.bar.Finish()
		}
		p.stage = stage
		p.bar = ui.NewBar(os.Stderr, total, p.labels[stage])
	}
	p.bar.Set(done)
}

func (p *stageProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
