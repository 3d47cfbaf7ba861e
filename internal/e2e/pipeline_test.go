package e2e

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tesseralab/tessera/internal/imaging"
	"github.com/tesseralab/tessera/internal/mosaic"
	"github.com/tesseralab/tessera/internal/store"
	"github.com/tesseralab/tessera/internal/tiles"
)

// =============================================================================
// Mosaic Pipeline E2E Tests
//
// These tests drive the full engine against synthetic images: solid-color
// PNG tiles and a quadrant input, rendered into temp directories. They
// verify output geometry, per-cell tile placement, cache idempotence, and
// failure behavior across package boundaries.
// =============================================================================

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func solid(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 255}
)

// tileLibrary writes one solid PNG per color and returns the directory.
func tileLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, c := range map[string]color.RGBA{
		"blue.png":  blue,
		"green.png": green,
		"red.png":   red,
		"white.png": white,
	} {
		writePNG(t, filepath.Join(dir, name), solid(c, 10, 10))
	}
	return dir
}

// quadrantInput writes a 2×2 input: red, green / blue, white.
func quadrantInput(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, red)
	img.SetRGBA(1, 0, green)
	img.SetRGBA(0, 1, blue)
	img.SetRGBA(1, 1, white)

	path := filepath.Join(t.TempDir(), "input.png")
	writePNG(t, path, img)
	return path
}

func TestPipelineQuadrants(t *testing.T) {
	tilesDir := tileLibrary(t)
	input := quadrantInput(t)

	st, err := store.Open(filepath.Join(t.TempDir(), "tessera.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	output := filepath.Join(t.TempDir(), "out", "mosaic.png")
	res, err := mosaic.Generate(context.Background(), mosaic.Options{
		Input:      input,
		TilesDir:   tilesDir,
		OutputPath: output,
		GridSide:   2,
		TileSide:   4,
		Workers:    4,
		Store:      st,
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if res.TileCount != 4 {
		t.Errorf("TileCount = %d, want 4", res.TileCount)
	}
	if res.DistinctColors != 4 {
		t.Errorf("DistinctColors = %d, want 4", res.DistinctColors)
	}

	img, format, err := imaging.Open(output)
	if err != nil {
		t.Fatalf("opening mosaic: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Fatalf("mosaic is %d×%d, want 8×8", b.Dx(), b.Dy())
	}

	// Every pixel of each 4×4 cell must be its quadrant's color.
	cells := map[image.Point]color.RGBA{
		{0, 0}: red,
		{1, 0}: green,
		{0, 1}: blue,
		{1, 1}: white,
	}
	for cell, want := range cells {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				px, py := cell.X*4+x, cell.Y*4+y
				r, g, b, a := img.At(px, py).RGBA()
				got := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
				if got != want {
					t.Fatalf("pixel (%d,%d) = %v, want %v", px, py, got, want)
				}
			}
		}
	}

	// The run lands in history.
	gens, err := st.Generations(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 1 {
		t.Fatalf("history rows = %d, want 1", len(gens))
	}
	if gens[0].ID != res.GenerationID {
		t.Errorf("history ID = %q, want %q", gens[0].ID, res.GenerationID)
	}
	if gens[0].Error != "" {
		t.Errorf("history row has error: %q", gens[0].Error)
	}
}

// Pre-indexing the library (what tessera tiles index does) and then
// generating from the warm cache must produce the same bytes as a run that
// never touches the cache.
func TestPipelinePreindexedMatchesUncached(t *testing.T) {
	tilesDir := tileLibrary(t)
	input := quadrantInput(t)
	outDir := t.TempDir()

	st, err := store.Open(filepath.Join(t.TempDir(), "tessera.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	lib, err := tiles.Load(context.Background(), tilesDir, tiles.LoadOptions{
		TileSide: 4,
		Cache:    st,
	})
	if err != nil {
		t.Fatalf("indexing: %v", err)
	}
	if len(lib.Tiles) != 4 {
		t.Fatalf("indexed %d tiles, want 4", len(lib.Tiles))
	}

	render := func(name string, opts mosaic.Options) []byte {
		t.Helper()
		opts.Input = input
		opts.TilesDir = tilesDir
		opts.OutputPath = filepath.Join(outDir, name)
		opts.GridSide = 2
		opts.TileSide = 4
		if _, err := mosaic.Generate(context.Background(), opts); err != nil {
			t.Fatalf("Generate(%s): %v", name, err)
		}
		data, err := os.ReadFile(opts.OutputPath)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	warm := render("warm.png", mosaic.Options{Store: st})
	uncached := render("uncached.png", mosaic.Options{Store: st, NoCache: true})

	if !bytes.Equal(warm, uncached) {
		t.Error("cached and uncached runs produced different mosaics")
	}

	// The warm run reused the index rather than growing it.
	n, err := st.TileCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("tile cache rows = %d, want 4", n)
	}
}

func TestPipelineKeepGoing(t *testing.T) {
	tilesDir := tileLibrary(t)
	input := quadrantInput(t)

	corrupt := filepath.Join(tilesDir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	opts := mosaic.Options{
		Input:      input,
		TilesDir:   tilesDir,
		OutputPath: filepath.Join(t.TempDir(), "mosaic.png"),
		GridSide:   2,
		TileSide:   4,
	}

	// Strict mode names the offending file.
	_, err := mosaic.Generate(context.Background(), opts)
	if err == nil {
		t.Fatal("strict run should fail on the corrupt tile")
	}
	if !strings.Contains(err.Error(), "corrupt.png") {
		t.Errorf("error should name the file: %v", err)
	}

	// Keep-going skips it and renders from the rest.
	opts.KeepGoing = true
	res, err := mosaic.Generate(context.Background(), opts)
	if err != nil {
		t.Fatalf("keep-going run failed: %v", err)
	}
	if res.TileCount != 4 {
		t.Errorf("TileCount = %d, want 4 surviving tiles", res.TileCount)
	}
	if _, err := os.Stat(opts.OutputPath); err != nil {
		t.Errorf("mosaic not written: %v", err)
	}
}
