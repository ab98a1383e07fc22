package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"riptide/internal/source"
)

// Input is one snippet queued for compilation. Path is a display name, not
// necessarily a real file.
type Input struct {
	Path string
	Text string
}

// listCELFiles возвращает отсортированный список всех *.cel файлов в директории
func listCELFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".cel") {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// LoadInputs reads snippets from the given paths. A directory expands to
// every *.cel file under it; file contents are normalized on the way in.
func LoadInputs(paths []string) ([]Input, error) {
	var inputs []Input
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %q: %w", path, err)
		}
		files := []string{path}
		if info.IsDir() {
			files, err = listCELFiles(path)
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				return nil, fmt.Errorf("no .cel files under %q", path)
			}
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read %q: %w", file, err)
			}
			text, err := source.Normalize(string(data))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			inputs = append(inputs, Input{Path: filepath.ToSlash(file), Text: text})
		}
	}
	return inputs, nil
}
