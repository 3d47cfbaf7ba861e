package tiles

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tesseralab/tessera/internal/log"
)

// originalsDir is where converted HEIC sources are moved, next to the tiles.
const originalsDir = ".originals"

// ConvertOptions configures Convert.
type ConvertOptions struct {
	// DeleteOriginals removes the HEIC source after a successful conversion
	// instead of moving it into .originals/.
	DeleteOriginals bool

	// Workers caps conversion parallelism (default GOMAXPROCS).
	Workers int

	// Progress, when non-nil, is called after each file completes.
	Progress func(done, total int)
}

// ConvertReport summarizes a Convert run.
type ConvertReport struct {
	Converted []string
	Skipped   []string // target .jpg already existed
	Failed    []ConvertFailure
}

// ConvertFailure records one file that could not be converted.
type ConvertFailure struct {
	Path string
	Err  error
}

// Convert turns every *.heic/*.heif file in dir into a JPEG by shelling out
// to ImageMagick, then moves the original aside (or deletes it). Individual
// failures land in the report; Convert itself fails only when the directory
// is unreadable or ImageMagick is missing.
func Convert(ctx context.Context, dir string, opts ConvertOptions) (*ConvertReport, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	paths, err := scanHEIC(dir)
	if err != nil {
		return nil, err
	}
	report := &ConvertReport{}
	if len(paths) == 0 {
		return report, nil
	}

	bin, err := MagickBinary()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var done atomic.Int64
	finish := func() {
		if opts.Progress != nil {
			opts.Progress(int(done.Add(1)), len(paths))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, src := range paths {
		src := src
		g.Go(func() error {
			defer finish()

			dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".jpg"
			if _, err := os.Stat(dst); err == nil {
				mu.Lock()
				report.Skipped = append(report.Skipped, src)
				mu.Unlock()
				return nil
			}

			if err := convertOne(gctx, bin, src, dst, opts.DeleteOriginals); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("conversion failed", "path", src, "error", err)
				mu.Lock()
				report.Failed = append(report.Failed, ConvertFailure{Path: src, Err: err})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			report.Converted = append(report.Converted, src)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(report.Converted)
	sort.Strings(report.Skipped)
	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].Path < report.Failed[j].Path
	})
	return report, nil
}

// convertOne runs one ImageMagick conversion and retires the source file.
func convertOne(ctx context.Context, bin, src, dst string, deleteOriginal bool) error {
	cmd := exec.CommandContext(ctx, bin, src, dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("running %s: %w\n%s", bin, err, out)
	}

	if deleteOriginal {
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("removing original: %w", err)
		}
		return nil
	}

	keep := filepath.Join(filepath.Dir(src), originalsDir)
	if err := os.MkdirAll(keep, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", originalsDir, err)
	}
	if err := os.Rename(src, filepath.Join(keep, filepath.Base(src))); err != nil {
		return fmt.Errorf("moving original aside: %w", err)
	}
	return nil
}

// scanHEIC lists *.heic and *.heif files in dir (case-insensitive,
// non-recursive), absolute and sorted.
func scanHEIC(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading tiles dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".heic", ".heif":
			abs, err := filepath.Abs(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("resolving path: %w", err)
			}
			paths = append(paths, abs)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// MagickBinary locates the ImageMagick CLI, preferring the v7 "magick"
// entrypoint and falling back to the v6 "convert".
func MagickBinary() (string, error) {
	for _, name := range []string{"magick", "convert"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("ImageMagick not found in PATH\n\nInstall it first:\n  macOS:         brew install imagemagick\n  Debian/Ubuntu: apt install imagemagick")
}
