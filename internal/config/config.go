// Package config handles tessera.yaml manifest parsing and the global
// ~/.tessera configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest represents a tessera.yaml project manifest.
type Manifest struct {
	// Tiles is the tile library directory, relative to the manifest.
	Tiles string `yaml:"tiles,omitempty"`

	// Input is the default source image.
	Input string `yaml:"input,omitempty"`

	// Output is the default mosaic path.
	Output string `yaml:"output,omitempty"`

	// TileSide is the pixel edge length of each rendered tile.
	TileSide int `yaml:"tile_side,omitempty"`

	// Size is the mosaic edge length in tiles.
	Size int `yaml:"size,omitempty"`

	// KeepGoing skips unreadable tiles instead of failing.
	KeepGoing bool `yaml:"keep_going,omitempty"`

	// Tasks are named command templates, run with `tessera run <name>`.
	Tasks map[string]TaskSpec `yaml:"tasks,omitempty"`
}

// TaskSpec defines one manifest task. Exactly one of Command and Argv must
// be set.
type TaskSpec struct {
	// Description is shown by `tessera tasks`.
	Description string `yaml:"description,omitempty"`

	// Params are ordered positional parameter names, referenced in the
	// template as {{name}}.
	Params []string `yaml:"params,omitempty"`

	// Command is a shell template, run via `sh -c`.
	Command string `yaml:"command,omitempty"`

	// Argv is the exec-form alternative to Command: no shell, placeholders
	// interpolate per element.
	Argv []string `yaml:"argv,omitempty"`

	// Env is extra environment for the task, on top of the process env and
	// the project's .env file.
	Env map[string]string `yaml:"env,omitempty"`

	// Dir is the working directory, relative to the manifest dir.
	Dir string `yaml:"dir,omitempty"`
}

// DefaultManifest returns the settings used when no tessera.yaml exists.
func DefaultManifest() *Manifest {
	return &Manifest{
		Tiles:    "tiles",
		Input:    "input",
		Output:   "mosaic.png",
		TileSide: 26,
		Size:     128,
	}
}

// Load reads tessera.yaml from the given directory and applies defaults.
// Returns nil, nil if the file doesn't exist.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "tessera.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading tessera.yaml: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing tessera.yaml: %w", err)
	}

	if m.TileSide < 0 {
		return nil, fmt.Errorf("tile_side must be at least 1, got %d", m.TileSide)
	}
	if m.Size < 0 {
		return nil, fmt.Errorf("size must be at least 1, got %d", m.Size)
	}

	def := DefaultManifest()
	if m.Tiles == "" {
		m.Tiles = def.Tiles
	}
	if m.Input == "" {
		m.Input = def.Input
	}
	if m.Output == "" {
		m.Output = def.Output
	}
	if m.TileSide == 0 {
		m.TileSide = def.TileSide
	}
	if m.Size == 0 {
		m.Size = def.Size
	}

	return &m, nil
}
