// Package main implements the riptide CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"riptide/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "riptide",
	Short: "Riptide expression compiler service",
	Long:  `Riptide compiles playground snippets against a pinned library bundle`,
}

// main initializes the CLI by setting the command version, registering
// subcommands and persistent flags, and then executes the root command.
// If command execution returns an error, the process exits with status code 1.
func main() {
	// Устанавливаем версию для автоматического флага --version
	rootCmd.Version = version.Version

	// Добавляем команды
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(sdkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to the given file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to the given file")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a runtime trace to the given file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// applyColorMode reads the persistent --color flag and flips the global
// color switch accordingly. Returns whether color ended up enabled.
func applyColorMode(cmd *cobra.Command) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "on":
		color.NoColor = false
		return true, nil
	case "off":
		color.NoColor = true
		return false, nil
	case "", "auto":
		enabled := isTerminal(os.Stdout)
		color.NoColor = !enabled
		return enabled, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
}
