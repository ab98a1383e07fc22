package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"riptide/internal/prof"
)

// setupProfiling inspects persistent profiling flags and enables the
// corresponding profilers. It returns a cleanup function that is safe to call
// multiple times.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	root := cmd.Root()

	cpuProfile, err := root.PersistentFlags().GetString("cpu-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	memProfile, err := root.PersistentFlags().GetString("mem-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	tracePath, err := root.PersistentFlags().GetString("runtime-trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}

	rec := &prof.Recorder{}
	writeMem := func() {}

	if cpuProfile != "" {
		if err := rec.StartCPU(cpuProfile); err != nil {
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
	}
	if tracePath != "" {
		if err := rec.StartTrace(tracePath); err != nil {
			rec.StopCPU()
			return nil, fmt.Errorf("failed to start trace: %w", err)
		}
	}
	if memProfile != "" {
		writeMem = func() {
			if err := rec.WriteMem(memProfile); err != nil {
				fmt.Fprintf(os.Stderr, "failed to write heap profile: %v\n", err)
			}
		}
	}

	cleaned := false
	cleanup := func() {
		if cleaned {
			return
		}
		cleaned = true
		rec.StopTrace()
		rec.StopCPU()
		writeMem()
	}

	return cleanup, nil
}
