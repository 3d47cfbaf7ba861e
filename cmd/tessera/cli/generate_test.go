package cli

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/config"
)

// testGenerateCmd builds a throwaway command with the generate flag set so
// each test gets fresh Changed state.
func testGenerateCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	genInput, genTiles, genOutput = "", "", ""
	genSize, genTileSide, genJobs = 0, 0, 0
	genKeep, genNoCache = false, false

	cmd := &cobra.Command{Use: "generate"}
	addGenerateFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return cmd
}

func TestGenerateOptionsFromManifest(t *testing.T) {
	m := &config.Manifest{
		Tiles:     "photos",
		Input:     "src.jpg",
		Output:    "out/mosaic.png",
		TileSide:  32,
		Size:      64,
		KeepGoing: true,
	}
	cmd := testGenerateCmd(t)

	opts := generateOptions(cmd, m, "proj")

	if want := filepath.Join("proj", "src.jpg"); opts.Input != want {
		t.Errorf("Input = %q, want %q", opts.Input, want)
	}
	if want := filepath.Join("proj", "photos"); opts.TilesDir != want {
		t.Errorf("TilesDir = %q, want %q", opts.TilesDir, want)
	}
	if want := filepath.Join("proj", "out", "mosaic.png"); opts.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", opts.OutputPath, want)
	}
	if opts.GridSide != 64 {
		t.Errorf("GridSide = %d, want 64", opts.GridSide)
	}
	if opts.TileSide != 32 {
		t.Errorf("TileSide = %d, want 32", opts.TileSide)
	}
	if !opts.KeepGoing {
		t.Error("KeepGoing should come from the manifest")
	}
}

func TestGenerateOptionsFlagsWin(t *testing.T) {
	m := &config.Manifest{
		Tiles:    "photos",
		Input:    "src.jpg",
		Output:   "mosaic.png",
		TileSide: 32,
		Size:     64,
	}
	cmd := testGenerateCmd(t, "-i", "other.png", "-m", "16", "--tile-side", "8", "--no-cache", "-j", "2")

	opts := generateOptions(cmd, m, ".")

	if opts.Input != "other.png" {
		t.Errorf("Input = %q, want flag value", opts.Input)
	}
	if opts.GridSide != 16 {
		t.Errorf("GridSide = %d, want 16", opts.GridSide)
	}
	if opts.TileSide != 8 {
		t.Errorf("TileSide = %d, want 8", opts.TileSide)
	}
	if !opts.NoCache {
		t.Error("NoCache flag not applied")
	}
	if opts.Workers != 2 {
		t.Errorf("Workers = %d, want 2", opts.Workers)
	}

	// Flags left unset still resolve from the manifest
	if want := filepath.Join(".", "photos"); opts.TilesDir != want {
		t.Errorf("TilesDir = %q, want %q", opts.TilesDir, want)
	}
}

func TestGenerateOptionsNoManifest(t *testing.T) {
	cmd := testGenerateCmd(t)

	opts := generateOptions(cmd, nil, ".")

	if opts.GridSide != 128 {
		t.Errorf("GridSide = %d, want default 128", opts.GridSide)
	}
	if opts.TileSide != 26 {
		t.Errorf("TileSide = %d, want default 26", opts.TileSide)
	}
	if opts.TilesDir != "tiles" {
		t.Errorf("TilesDir = %q, want %q", opts.TilesDir, "tiles")
	}
	if opts.OutputPath != "mosaic.png" {
		t.Errorf("OutputPath = %q, want %q", opts.OutputPath, "mosaic.png")
	}
}
