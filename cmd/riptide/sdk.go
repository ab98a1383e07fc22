package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"riptide/internal/sdk"
)

var sdkCmd = &cobra.Command{
	Use:   "sdk",
	Short: "Inspect the library bundle",
}

var sdkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every file in the bundle",
	Args:  cobra.NoArgs,
	RunE:  runSDKList,
}

var sdkShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Print one bundle file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSDKShow,
}

func init() {
	sdkCmd.PersistentFlags().String("sdk", "", "library directory (defaults to the manifest setting or the embedded bundle)")
	sdkCmd.AddCommand(sdkListCmd)
	sdkCmd.AddCommand(sdkShowCmd)
}

// resolveTable picks the bundle: --sdk flag, then the manifest, then the
// embedded copy.
func resolveTable(cmd *cobra.Command) (*sdk.Table, string, error) {
	dir, err := cmd.Flags().GetString("sdk")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get sdk flag: %w", err)
	}
	if dir == "" {
		manifest, found, err := loadManifest(".")
		if err != nil {
			return nil, "", err
		}
		if found {
			if dir, err = manifest.SDKDir(); err != nil {
				return nil, "", err
			}
		}
	}
	if dir == "" {
		table, err := sdk.Default()
		if err != nil {
			return nil, "", fmt.Errorf("failed to load embedded sdk: %w", err)
		}
		return table, "embedded", nil
	}
	table, err := sdk.LoadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load sdk: %w", err)
	}
	return table, dir, nil
}

func runSDKList(cmd *cobra.Command, _ []string) error {
	table, origin, err := resolveTable(cmd)
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	for _, path := range table.Paths() {
		fmt.Fprintln(os.Stdout, path)
	}
	if !quiet {
		fmt.Fprintf(os.Stdout, "%d file(s), %s bundle\n", table.Len(), origin)
	}
	return nil
}

func runSDKShow(cmd *cobra.Command, args []string) error {
	table, _, err := resolveTable(cmd)
	if err != nil {
		return err
	}
	text, ok := table.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no such bundle file %q (try `riptide sdk list`)", args[0])
	}
	fmt.Fprint(os.Stdout, text)
	return nil
}
