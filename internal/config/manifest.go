// Package config handles rplus.toml project manifests.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents an rplus.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Build   Build   `toml:"build"`

	// Dir is the directory containing the rplus.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where the CLI looks for the program's entry file.
type Source struct {
	Entry string `toml:"entry"`
}

// Build configures compile output defaults.
type Build struct {
	OutDir string `toml:"out-dir"`
	Engine string `toml:"engine"`
}

// Load parses an rplus.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "rplus.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Source.Entry == "" {
		m.Source.Entry = "main.rp"
	}
	if m.Build.Engine == "" {
		m.Build.Engine = "stack"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir looking for an rplus.toml file,
// then loads and returns it. Returns nil, nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "rplus.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path to the manifest's entry source file.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Source.Entry)
}

// OutDirPath returns the absolute path to the configured output directory,
// defaulting to the manifest directory itself.
func (m *Manifest) OutDirPath() string {
	if m.Build.OutDir == "" {
		return m.Dir
	}
	return filepath.Join(m.Dir, m.Build.OutDir)
}
