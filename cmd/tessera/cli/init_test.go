package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tesseralab/tessera/internal/config"
	"github.com/tesseralab/tessera/internal/task"
)

func TestInitWritesStarterManifest(t *testing.T) {
	dir := t.TempDir()
	configDir = dir
	defer func() { configDir = "" }()

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}

	m, err := config.Load(dir)
	if err != nil {
		t.Fatalf("starter manifest does not parse: %v", err)
	}
	if m == nil {
		t.Fatal("tessera.yaml was not written")
	}
	if m.Tiles != "tiles" || m.Input != "input" || m.Output != "mosaic.png" {
		t.Errorf("starter paths = %q/%q/%q", m.Tiles, m.Input, m.Output)
	}
	if m.Size != 128 || m.TileSide != 26 {
		t.Errorf("starter sizes = %d/%d, want 128/26", m.Size, m.TileSide)
	}
}

// The starter aliases must produce the canonical generate invocation, with
// extra args forwarded untouched.
func TestInitStarterAliases(t *testing.T) {
	dir := t.TempDir()
	configDir = dir
	defer func() { configDir = "" }()

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}

	m, err := config.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	set, err := task.FromManifest(m, dir)
	if err != nil {
		t.Fatalf("starter tasks do not validate: %v", err)
	}

	tk, err := set.Lookup("run")
	if err != nil {
		t.Fatalf("starter manifest missing run alias: %v", err)
	}
	inv, err := task.Bind(tk, []string{"128", "--no-cache"})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"sh", "-c",
		`tessera generate -i input -t tiles -k -m 128 "$@"`,
		"tessera-task", "--no-cache",
	}
	if got := inv.Command(); !reflect.DeepEqual(got, want) {
		t.Errorf("run alias command = %q, want %q", got, want)
	}

	debug, err := set.Lookup("run-debug")
	if err != nil {
		t.Fatalf("starter manifest missing run-debug alias: %v", err)
	}
	dinv, err := task.Bind(debug, []string{"64"})
	if err != nil {
		t.Fatal(err)
	}
	if got := dinv.Command()[2]; !strings.HasPrefix(got, "tessera --verbose generate ") {
		t.Errorf("run-debug template = %q, want --verbose variant", got)
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	configDir = dir
	defer func() { configDir = "" }()

	existing := filepath.Join(dir, "tessera.yaml")
	if err := os.WriteFile(existing, []byte("tiles: mine\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := runInit(initCmd, nil)
	if err == nil {
		t.Fatal("runInit() should refuse to overwrite")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %v, want mention of existing file", err)
	}

	// The original is untouched
	data, _ := os.ReadFile(existing)
	if string(data) != "tiles: mine\n" {
		t.Errorf("existing manifest was modified: %q", data)
	}
}
