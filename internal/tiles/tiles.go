// Package tiles loads and prepares the tile library used to assemble
// mosaics.
package tiles

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tesseralab/tessera/internal/imaging"
	"github.com/tesseralab/tessera/internal/log"
	"github.com/tesseralab/tessera/internal/store"
)

// DefaultTileSide is the pixel edge length of each rendered tile.
const DefaultTileSide = 26

// Tile is one candidate mosaic cell.
type Tile struct {
	// Path is the absolute path of the source image.
	Path string

	// Image is the tile scaled to exactly Side×Side pixels. It is nil when
	// the average came from the cache; call Library.Materialize before
	// using it.
	Image image.Image

	// Avg is the per-channel mean of every pixel, truncated to uint8.
	Avg color.RGBA

	size  int64
	mtime int64
}

// Library is the loaded tile set, ordered by path so matching is
// reproducible.
type Library struct {
	Tiles []Tile
	Side  int
}

// LoadOptions configures Load.
type LoadOptions struct {
	// TileSide is the edge length tiles are scaled to (default
	// DefaultTileSide).
	TileSide int

	// KeepGoing skips unreadable tiles instead of failing on the first one.
	KeepGoing bool

	// Workers caps decode parallelism (default GOMAXPROCS).
	Workers int

	// Cache, when non-nil, is consulted for previously computed averages
	// and updated with fresh ones. Cache read failures degrade to
	// recomputation; write failures only warn.
	Cache *store.Store

	// Progress, when non-nil, is called after each tile completes. It must
	// be cheap; it runs on the worker goroutines.
	Progress func(done, total int)
}

func (o *LoadOptions) setDefaults() {
	if o.TileSide <= 0 {
		o.TileSide = DefaultTileSide
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
}

// Load scans dir (non-recursive) and builds the tile library. Dotfiles and
// subdirectories are skipped. With KeepGoing, unreadable files are logged
// and dropped; an empty library is an error either way.
func Load(ctx context.Context, dir string, opts LoadOptions) (*Library, error) {
	opts.setDefaults()

	paths, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no usable tiles in %s", dir)
	}

	type slot struct {
		tile Tile
		ok   bool
	}
	slots := make([]slot, len(paths))

	var done atomic.Int64
	finish := func() {
		if opts.Progress != nil {
			opts.Progress(int(done.Add(1)), len(paths))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tile, err := loadTile(path, opts.TileSide, opts.Cache)
			if err != nil {
				if !opts.KeepGoing {
					return fmt.Errorf("loading tile %s: %w", path, err)
				}
				log.Warn("skipping unreadable tile", "path", path, "error", err)
				finish()
				return nil
			}
			slots[i] = slot{tile: tile, ok: true}
			finish()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lib := &Library{Side: opts.TileSide}
	for _, s := range slots {
		if s.ok {
			lib.Tiles = append(lib.Tiles, s.tile)
		}
	}
	if len(lib.Tiles) == 0 {
		return nil, fmt.Errorf("no usable tiles in %s", dir)
	}
	return lib, nil
}

// Scan lists the candidate tile paths in dir, absolute and sorted. Dotfiles
// and subdirectories are skipped.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading tiles dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("resolving tile path: %w", err)
		}
		paths = append(paths, abs)
	}
	sort.Strings(paths)
	return paths, nil
}

// loadTile produces one Tile, from the cache when the content identity
// matches, otherwise by decoding the file.
func loadTile(path string, side int, cache *store.Store) (Tile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Tile{}, err
	}
	size := info.Size()
	mtime := info.ModTime().UnixNano()

	if cache != nil {
		avg, ok, err := cache.TileAvg(path, size, mtime, side)
		if err != nil {
			log.Warn("tile cache read failed, recomputing", "path", path, "error", err)
		} else if ok {
			return Tile{Path: path, Avg: avg, size: size, mtime: mtime}, nil
		}
	}

	img, _, err := imaging.Open(path)
	if err != nil {
		return Tile{}, err
	}
	scaled := imaging.Scale(img, side, side)
	tile := Tile{
		Path:  path,
		Image: scaled,
		Avg:   AverageColor(scaled),
		size:  size,
		mtime: mtime,
	}

	if cache != nil {
		err := cache.PutTileAvg(store.TileEntry{
			Path: path, Size: size, MTime: mtime, TileSide: side, Avg: tile.Avg,
		})
		if err != nil {
			log.Warn("tile cache write failed", "path", path, "error", err)
		}
	}
	return tile, nil
}

// Materialize decodes the images for the given tile indices where they are
// still nil (cache hits skip decoding during Load). Matched tiles must be
// materialized before assembly.
func (l *Library) Materialize(ctx context.Context, indices []int, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if seen[i] || l.Tiles[i].Image != nil {
			continue
		}
		seen[i] = true
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := &l.Tiles[i]
			img, _, err := imaging.Open(t.Path)
			if err != nil {
				return fmt.Errorf("loading tile %s: %w", t.Path, err)
			}
			t.Image = imaging.Scale(img, l.Side, l.Side)
			return nil
		})
	}
	return g.Wait()
}

// Paths returns the library's tile paths in order.
func (l *Library) Paths() []string {
	paths := make([]string, len(l.Tiles))
	for i, t := range l.Tiles {
		paths[i] = t.Path
	}
	return paths
}

// AverageColor computes the per-channel mean of every pixel, alpha included,
// truncated (not rounded) to uint8.
func AverageColor(img image.Image) color.RGBA {
	b := img.Bounds()
	count := float64(b.Dx()) * float64(b.Dy())
	if count == 0 {
		return color.RGBA{}
	}

	var r, g, bl, a float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			r += float64(c.R)
			g += float64(c.G)
			bl += float64(c.B)
			a += float64(c.A)
		}
	}
	return color.RGBA{
		R: uint8(r / count),
		G: uint8(g / count),
		B: uint8(bl / count),
		A: uint8(a / count),
	}
}
