// Package project locates and parses the riptide.toml playground manifest.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file the project root is identified by.
const ManifestName = "riptide.toml"

var (
	// ErrPlaygroundSectionMissing indicates that [playground] is missing in a manifest.
	ErrPlaygroundSectionMissing = errors.New("missing [playground]")
)

// PlaygroundConfig is the [playground] section.
type PlaygroundConfig struct {
	Name    string   `toml:"name"`
	SDK     string   `toml:"sdk"`
	Options []string `toml:"options"`
}

// CompileConfig is the [compile] section; everything is optional.
type CompileConfig struct {
	Jobs   int    `toml:"jobs"`
	Queue  bool   `toml:"queue"`
	Cache  bool   `toml:"cache"`
	Format string `toml:"format"`
}

// Manifest is one parsed riptide.toml plus the directory it was found in.
type Manifest struct {
	Playground PlaygroundConfig
	Compile    CompileConfig
	Dir        string
}

type manifestFile struct {
	Playground PlaygroundConfig `toml:"playground"`
	Compile    CompileConfig    `toml:"compile"`
}

// FindManifest walks up from startDir to locate riptide.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// FindRoot returns the directory containing riptide.toml, if any.
func FindRoot(startDir string) (root string, ok bool, err error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return "", ok, err
	}
	return filepath.Dir(manifestPath), true, nil
}

// Load parses a manifest file. The [playground] section is required.
func Load(path string) (Manifest, error) {
	var cfg manifestFile
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("playground") {
		return Manifest{}, fmt.Errorf("%s: %w", path, ErrPlaygroundSectionMissing)
	}
	if format := strings.TrimSpace(cfg.Compile.Format); format != "" {
		switch format {
		case "pretty", "short", "json":
		default:
			return Manifest{}, fmt.Errorf("%s: invalid [compile].format %q (must be pretty, short, or json)", path, format)
		}
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to resolve manifest directory: %w", err)
	}
	return Manifest{
		Playground: cfg.Playground,
		Compile:    cfg.Compile,
		Dir:        abs,
	}, nil
}

// SDKDir resolves [playground].sdk against the manifest directory.
// An empty setting returns "", meaning the embedded bundle.
func (m Manifest) SDKDir() (string, error) {
	sdk := strings.TrimSpace(m.Playground.SDK)
	if sdk == "" {
		return "", nil
	}
	if filepath.IsAbs(sdk) {
		return "", fmt.Errorf("invalid [playground].sdk %q: must be relative", sdk)
	}
	dir := filepath.Join(m.Dir, filepath.Clean(filepath.FromSlash(sdk)))
	if !pathWithin(m.Dir, dir) {
		return "", fmt.Errorf("invalid [playground].sdk %q: escapes project root", sdk)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("invalid [playground].sdk %q: %w", sdk, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("invalid [playground].sdk %q: not a directory", sdk)
	}
	return dir, nil
}

func pathWithin(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..") && rel != ".."
}
