package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new riptide playground",
	Long: `Initialize a new riptide playground by creating a manifest (riptide.toml),
a starter library bundle (sdk/) and an example snippet (snippets/hello.cel).
If [path|name] is omitted, initializes the current directory. If a
non-existing name is provided, a directory will be created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

// runInit initializes a playground at the specified target path (or the
// current working directory when no argument or "." is provided).
//
// It resolves the target path, creates the directory if it does not exist,
// derives a playground name from the directory basename (falling back to
// "riptide-playground" for invalid names), and refuses to initialize if
// riptide.toml already exists. On success it writes the manifest, the sdk
// starter and the example snippet, and prints the created files.
func runInit(cmd *cobra.Command, args []string) error {
	// Resolve target directory
	var target string
	if len(args) == 0 || args[0] == "." {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = wd
	} else {
		// treat as path or name relative to cwd
		arg := args[0]
		if !filepath.IsAbs(arg) {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target = filepath.Join(wd, arg)
		} else {
			target = arg
		}
	}

	// Ensure directory exists
	if st, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", target, err)
			}
		} else {
			return err
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	// Determine playground name from directory basename
	name := filepath.Base(target)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "riptide-playground"
	}

	// Create manifest file if not exists
	manifestPath := filepath.Join(target, "riptide.toml")
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("playground already initialized: %s exists", manifestPath)
	}

	manifest := buildDefaultManifest(name)
	if err := os.WriteFile(manifestPath, []byte(manifest), os.FileMode(0o600)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	// Create sdk/env.celdecl if not exists
	declPath := filepath.Join(target, "sdk", "env.celdecl")
	createdDecl := false
	if _, err := os.Stat(declPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(declPath), 0o755); err != nil {
			return fmt.Errorf("failed to create sdk directory: %w", err)
		}
		if err := os.WriteFile(declPath, []byte(defaultEnvDecl()), 0o600); err != nil {
			return fmt.Errorf("failed to write env.celdecl: %w", err)
		}
		createdDecl = true
	}

	// Create snippets/hello.cel if not exists
	snippetPath := filepath.Join(target, "snippets", "hello.cel")
	createdSnippet := false
	if _, err := os.Stat(snippetPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(snippetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create snippets directory: %w", err)
		}
		if err := os.WriteFile(snippetPath, []byte(defaultSnippet()), 0o600); err != nil {
			return fmt.Errorf("failed to write hello.cel: %w", err)
		}
		createdSnippet = true
	}

	rel := target
	if wd, err := os.Getwd(); err == nil {
		if r, err2 := filepath.Rel(wd, target); err2 == nil {
			rel = r
		}
	}
	fmt.Fprintf(os.Stdout, "Initialized riptide playground in %s\n", rel)
	fmt.Fprintf(os.Stdout, "  - riptide.toml\n")
	if createdDecl {
		fmt.Fprintf(os.Stdout, "  - sdk/env.celdecl\n")
	} else {
		fmt.Fprintf(os.Stdout, "  - sdk/env.celdecl (existing)\n")
	}
	if createdSnippet {
		fmt.Fprintf(os.Stdout, "  - snippets/hello.cel\n")
	} else {
		fmt.Fprintf(os.Stdout, "  - snippets/hello.cel (existing)\n")
	}
	return nil
}

// buildDefaultManifest returns a minimal TOML manifest for a riptide
// playground using the provided name. The manifest contains the [playground]
// marker section and a [compile] section with the default output format.
func buildDefaultManifest(name string) string {
	// Minimal TOML manifest used as a project marker.
	return fmt.Sprintf(`# Riptide playground manifest
[playground]
name = "%s"
sdk = "sdk"

[compile]
format = "pretty"
`, name)
}

// defaultEnvDecl returns the starter environment declarations. The file is
// looked up at sdk:/lib/env.celdecl before every compile.
func defaultEnvDecl() string {
	return `# Variables visible to every snippet.
#
# One declaration per line: <name>: <type>
# Types: bool int uint double string bytes timestamp duration dyn
#        list(T) map(K, V)

request: map(string, dyn)
principal: string
`
}

// defaultSnippet returns the example snippet compiled by a bare
// `riptide compile` in a fresh playground.
func defaultSnippet() string {
	return `// Riptide hello world. Compile me with: riptide compile
principal.startsWith("user:") && size(request) >= 0
`
}
