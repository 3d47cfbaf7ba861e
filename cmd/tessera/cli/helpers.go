package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tesseralab/tessera/internal/config"
	"github.com/tesseralab/tessera/internal/store"
)

// openStore opens the index store at the configured path.
func openStore() (*store.Store, error) {
	cfg, _ := config.LoadGlobal()
	return store.Open(cfg.Store.Path)
}

// loadManifest reads tessera.yaml from the manifest directory. The returned
// manifest is nil when no tessera.yaml exists; dir is always the directory
// that was searched.
func loadManifest() (*config.Manifest, string, error) {
	dir := manifestDir()
	m, err := config.Load(dir)
	if err != nil {
		return nil, dir, err
	}
	return m, dir, nil
}

// shortenPath shortens a path for display, using ~ for home directory.
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

// formatAge formats a time as a compact age string.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// formatDuration renders a duration with sensible precision for humans.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
