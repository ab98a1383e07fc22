package sdk

import "embed"

//go:embed sdklib
var embedded embed.FS

// Default returns the playground SDK bundled with the binary.
// An error here means the bundle itself is broken (build bug).
func Default() (*Table, error) {
	return LoadFS(embedded, "sdklib")
}
