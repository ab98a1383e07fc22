package sdk

import (
	"fmt"
	"io/fs"
	"os"
	"path"

	"riptide/internal/source"
)

// library file extensions the loaders accept
func libraryFile(name string) bool {
	switch path.Ext(name) {
	case ".cel", ".celdecl":
		return true
	default:
		return false
	}
}

// LoadFS reads every library file under root in fsys into a table.
// Keys are slash-relative to root; contents are normalized (BOM, NFC).
func LoadFS(fsys fs.FS, root string) (*Table, error) {
	sources := make(map[string]string)
	err := fs.WalkDir(fsys, root, func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !libraryFile(entryPath) {
			return nil
		}
		data, err := fs.ReadFile(fsys, entryPath)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", entryPath, err)
		}
		text, err := source.Normalize(string(data))
		if err != nil {
			return fmt.Errorf("library file %q: %w", entryPath, err)
		}
		rel := entryPath
		if root != "." {
			rel = entryPath[len(root)+1:]
		}
		sources[rel] = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sdk from %q: %w", root, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no library files under %q", root)
	}
	return New(sources), nil
}

// LoadDir loads a table from a directory on disk.
func LoadDir(dir string) (*Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat sdk dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sdk path %q is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir), ".")
}
