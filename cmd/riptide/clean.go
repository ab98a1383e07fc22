package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"riptide/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop the compile result cache",
	Long:  "Remove cached compile results stored under the user cache directory.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(_ *cobra.Command, _ []string) error {
	cache, err := driver.OpenResultCache("riptide")
	if err != nil {
		return fmt.Errorf("failed to open result cache: %w", err)
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to drop result cache: %w", err)
	}
	_, _ = fmt.Fprintln(os.Stdout, "result cache dropped")
	return nil
}
