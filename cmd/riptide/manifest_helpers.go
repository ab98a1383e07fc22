package main

import (
	"riptide/internal/project"
)

// loadManifest walks up from startDir and parses riptide.toml when present.
func loadManifest(startDir string) (project.Manifest, bool, error) {
	path, ok, err := project.FindManifest(startDir)
	if err != nil || !ok {
		return project.Manifest{}, ok, err
	}
	m, err := project.Load(path)
	if err != nil {
		return project.Manifest{}, true, err
	}
	return m, true, nil
}
