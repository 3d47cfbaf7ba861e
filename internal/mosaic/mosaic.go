// Package mosaic renders photo mosaics: every pixel of a scaled-down input
// becomes one tile, chosen from a library by nearest average color.
package mosaic

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tesseralab/tessera/internal/id"
	"github.com/tesseralab/tessera/internal/imaging"
	"github.com/tesseralab/tessera/internal/log"
	"github.com/tesseralab/tessera/internal/name"
	"github.com/tesseralab/tessera/internal/store"
	"github.com/tesseralab/tessera/internal/tiles"
)

// Stage identifies a pipeline phase in progress callbacks.
type Stage string

const (
	// StageTiles is the tile library scan and index.
	StageTiles Stage = "tiles"
	// StageMatch assigns a tile to each distinct input color.
	StageMatch Stage = "match"
	// StageAssemble draws the output canvas, row by row.
	StageAssemble Stage = "assemble"
)

// Options configures Generate.
type Options struct {
	// Input is the source image the mosaic depicts.
	Input string

	// TilesDir holds the candidate tile images.
	TilesDir string

	// OutputPath is where the mosaic is written (.png, .jpg, .jpeg).
	OutputPath string

	// GridSide is the mosaic edge length in tiles. The input is scaled to
	// GridSide×GridSide and every pixel becomes one tile.
	GridSide int

	// TileSide is the pixel edge length of each tile.
	TileSide int

	// KeepGoing skips unreadable tiles instead of failing.
	KeepGoing bool

	// Workers caps parallelism for indexing and matching (default
	// GOMAXPROCS).
	Workers int

	// NoCache bypasses the tile index cache; every tile is re-decoded.
	NoCache bool

	// Store records the generation and, unless NoCache is set, caches tile
	// averages. May be nil.
	Store *store.Store

	// Progress, when non-nil, receives per-stage completion updates. It
	// must be cheap; it runs on worker goroutines.
	Progress func(stage Stage, done, total int)
}

func (o *Options) validate() error {
	if o.Input == "" {
		return fmt.Errorf("input image is required")
	}
	if o.TilesDir == "" {
		return fmt.Errorf("tiles directory is required")
	}
	if o.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if o.GridSide < 1 {
		return fmt.Errorf("grid side must be at least 1, got %d", o.GridSide)
	}
	if o.TileSide < 1 {
		return fmt.Errorf("tile side must be at least 1, got %d", o.TileSide)
	}
	return nil
}

func (o *Options) progress(stage Stage, done, total int) {
	if o.Progress != nil {
		o.Progress(stage, done, total)
	}
}

// Result describes a finished generation.
type Result struct {
	GenerationID   string
	Name           string
	OutputPath     string
	GridSide       int
	TileSide       int
	TileCount      int
	DistinctColors int
	Duration       time.Duration
}

// Generate runs the full pipeline: index tiles, scale the input, match each
// distinct color to its nearest tile, assemble, and save. The generation is
// recorded in the store either way; recording failures only warn.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	genID := id.Generate("gen")
	genName := name.Generate()
	log.SetGeneration(genID)
	defer log.ClearGeneration()
	log.Info("generation starting",
		"id", genID,
		"name", genName,
		"input", opts.Input,
		"tiles", opts.TilesDir,
		"grid_side", opts.GridSide,
		"tile_side", opts.TileSide,
	)

	start := time.Now()
	res, err := generate(ctx, &opts)
	elapsed := time.Since(start)

	if opts.Store != nil {
		rec := store.Generation{
			ID:        genID,
			Name:      genName,
			Input:     absPath(opts.Input),
			TilesDir:  absPath(opts.TilesDir),
			GridSide:  opts.GridSide,
			TileSide:  opts.TileSide,
			Output:    absPath(opts.OutputPath),
			Duration:  elapsed,
			CreatedAt: time.Now(),
		}
		if err != nil {
			rec.Error = err.Error()
		} else {
			rec.TileCount = res.TileCount
		}
		if serr := opts.Store.AppendGeneration(rec); serr != nil {
			log.Warn("recording generation failed", "error", serr)
		}
	}
	if err != nil {
		log.Error("generation failed", "id", genID, "error", err, "duration", elapsed)
		return nil, err
	}

	res.GenerationID = genID
	res.Name = genName
	res.Duration = elapsed
	log.Info("generation finished",
		"id", genID,
		"output", res.OutputPath,
		"tiles", res.TileCount,
		"distinct_colors", res.DistinctColors,
		"duration", elapsed,
	)
	return res, nil
}

func generate(ctx context.Context, opts *Options) (*Result, error) {
	cache := opts.Store
	if opts.NoCache {
		cache = nil
	}
	lib, err := tiles.Load(ctx, opts.TilesDir, tiles.LoadOptions{
		TileSide:  opts.TileSide,
		KeepGoing: opts.KeepGoing,
		Workers:   opts.Workers,
		Cache:     cache,
		Progress: func(done, total int) {
			opts.progress(StageTiles, done, total)
		},
	})
	if err != nil {
		return nil, err
	}
	log.Debug("tile library loaded", "tiles", len(lib.Tiles), "side", lib.Side)

	input, _, err := imaging.Open(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("loading input %s: %w", opts.Input, err)
	}
	scaled := imaging.Scale(input, opts.GridSide, opts.GridSide)

	cells, distinct := colorGrid(scaled)
	log.Debug("input scaled", "grid_side", opts.GridSide, "distinct_colors", len(distinct))

	match, err := matchColors(ctx, lib, distinct, opts)
	if err != nil {
		return nil, err
	}

	if err := lib.Materialize(ctx, match, opts.Workers); err != nil {
		return nil, err
	}

	out := assemble(lib, cells, match, opts)

	if dir := filepath.Dir(opts.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	}
	if err := imaging.Save(opts.OutputPath, out); err != nil {
		return nil, err
	}

	return &Result{
		OutputPath:     opts.OutputPath,
		GridSide:       opts.GridSide,
		TileSide:       opts.TileSide,
		TileCount:      len(lib.Tiles),
		DistinctColors: len(distinct),
	}, nil
}

// colorGrid flattens the scaled input into per-cell indices into the
// distinct color list. Matching runs once per distinct color, not per cell;
// photographic inputs repeat colors heavily once scaled down.
func colorGrid(img *image.RGBA) (cells []int, distinct []color.RGBA) {
	b := img.Bounds()
	cells = make([]int, b.Dx()*b.Dy())
	index := make(map[color.RGBA]int)

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			di, ok := index[c]
			if !ok {
				di = len(distinct)
				index[c] = di
				distinct = append(distinct, c)
			}
			cells[i] = di
			i++
		}
	}
	return cells, distinct
}

// matchColors picks the nearest tile for every distinct color. match[i] is
// the library index chosen for distinct[i].
func matchColors(ctx context.Context, lib *tiles.Library, distinct []color.RGBA, opts *Options) ([]int, error) {
	match := make([]int, len(distinct))

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, c := range distinct {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			match[i] = nearest(lib.Tiles, c)
			opts.progress(StageMatch, int(done.Add(1)), len(distinct))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return match, nil
}

// nearest returns the index of the tile whose average is closest to c.
// Strict less keeps the first of equally distant tiles, so ties resolve to
// the lowest index in the path-sorted library.
func nearest(ts []tiles.Tile, c color.RGBA) int {
	best := 0
	bestD := distanceSq(ts[0].Avg, c)
	for i := 1; i < len(ts); i++ {
		if d := distanceSq(ts[i].Avg, c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// assemble draws the matched tiles onto the output canvas.
func assemble(lib *tiles.Library, cells, match []int, opts *Options) *image.RGBA {
	side, tileSide := opts.GridSide, opts.TileSide
	out := image.NewRGBA(image.Rect(0, 0, side*tileSide, side*tileSide))

	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			t := &lib.Tiles[match[cells[y*side+x]]]
			r := image.Rect(x*tileSide, y*tileSide, (x+1)*tileSide, (y+1)*tileSide)
			draw.Draw(out, r, t.Image, t.Image.Bounds().Min, draw.Src)
		}
		opts.progress(StageAssemble, y+1, side)
	}
	return out
}

// Distance is the Euclidean distance between two colors in RGBA space,
// alpha included.
func Distance(a, b color.RGBA) float64 {
	return math.Sqrt(float64(distanceSq(a, b)))
}

// distanceSq drops the sqrt for comparisons; the argmin is the same.
func distanceSq(a, b color.RGBA) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	da := int(a.A) - int(b.A)
	return dr*dr + dg*dg + db*db + da*da
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
