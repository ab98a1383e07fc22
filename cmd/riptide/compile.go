package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"riptide/internal/codec"
	"riptide/internal/diagfmt"
	"riptide/internal/driver"
	"riptide/internal/observ"
	"riptide/internal/pipeline"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [path ...]",
	Short: "Compile expression snippets",
	Long: `Compile .cel snippets against the library bundle. Paths may be files or
directories; a directory expands to every .cel file under it. Without paths,
the snippets directory next to riptide.toml is compiled.`,
	Args: cobra.ArbitraryArgs,
	RunE: runCompileCmd,
}

func init() {
	compileCmd.Flags().String("sdk", "", "library directory (defaults to the manifest setting or the embedded bundle)")
	compileCmd.Flags().StringArray("option", nil, "engine option, repeatable (e.g. --option container=acme)")
	compileCmd.Flags().Bool("parse-only", false, "skip the type checker")
	compileCmd.Flags().String("format", "", "output format (pretty|short|json)")
	compileCmd.Flags().String("out", "", "directory for compiled artifacts")
	compileCmd.Flags().Int("jobs", 0, "parallel compiles (0 = number of CPUs)")
	compileCmd.Flags().Bool("queue", false, "queue compiles on a busy driver instead of failing")
	compileCmd.Flags().Bool("cache", false, "reuse results of identical compiles")
	compileCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
	compileCmd.Flags().Int8("context", 1, "context lines around each problem in pretty output")
	compileCmd.Flags().Duration("timeout", 0, "abort the batch after this duration")
}

type compileSettings struct {
	sdkDir  string
	options []string
	format  string
	outDir  string
	jobs    int
	queue   bool
	cache   bool
	uiValue string
	context int8
	timeout time.Duration
	quiet   bool
	timings bool
	color   bool
}

func collectCompileSettings(cmd *cobra.Command) (compileSettings, error) {
	var s compileSettings
	var err error

	if s.sdkDir, err = cmd.Flags().GetString("sdk"); err != nil {
		return s, err
	}
	if s.options, err = cmd.Flags().GetStringArray("option"); err != nil {
		return s, err
	}
	parseOnly, err := cmd.Flags().GetBool("parse-only")
	if err != nil {
		return s, err
	}
	if parseOnly {
		s.options = append(s.options, "parse-only")
	}
	if s.format, err = cmd.Flags().GetString("format"); err != nil {
		return s, err
	}
	if s.outDir, err = cmd.Flags().GetString("out"); err != nil {
		return s, err
	}
	if s.jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
		return s, err
	}
	if s.queue, err = cmd.Flags().GetBool("queue"); err != nil {
		return s, err
	}
	if s.cache, err = cmd.Flags().GetBool("cache"); err != nil {
		return s, err
	}
	if s.uiValue, err = cmd.Flags().GetString("ui"); err != nil {
		return s, err
	}
	if s.context, err = cmd.Flags().GetInt8("context"); err != nil {
		return s, err
	}
	if s.timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return s, err
	}
	if s.quiet, err = cmd.Root().PersistentFlags().GetBool("quiet"); err != nil {
		return s, err
	}
	if s.timings, err = cmd.Root().PersistentFlags().GetBool("timings"); err != nil {
		return s, err
	}
	if s.color, err = applyColorMode(cmd); err != nil {
		return s, err
	}
	return s, nil
}

// applyManifest fills unset settings from riptide.toml. Flags win.
func applyManifest(cmd *cobra.Command, s *compileSettings) (manifestDir string, err error) {
	manifest, found, err := loadManifest(".")
	if err != nil {
		return "", err
	}
	if !found {
		if s.format == "" {
			s.format = "pretty"
		}
		return "", nil
	}

	if !cmd.Flags().Changed("sdk") {
		dir, err := manifest.SDKDir()
		if err != nil {
			return "", err
		}
		s.sdkDir = dir
	}
	// Опции из манифеста идут первыми, флаги их дополняют.
	s.options = append(append([]string{}, manifest.Playground.Options...), s.options...)
	if s.format == "" {
		s.format = manifest.Compile.Format
	}
	if s.format == "" {
		s.format = "pretty"
	}
	if !cmd.Flags().Changed("jobs") && manifest.Compile.Jobs > 0 {
		s.jobs = manifest.Compile.Jobs
	}
	if !cmd.Flags().Changed("queue") {
		s.queue = manifest.Compile.Queue
	}
	if !cmd.Flags().Changed("cache") {
		s.cache = manifest.Compile.Cache
	}
	return manifest.Dir, nil
}

func runCompileCmd(cmd *cobra.Command, args []string) error {
	s, err := collectCompileSettings(cmd)
	if err != nil {
		return err
	}
	manifestDir, err := applyManifest(cmd, &s)
	if err != nil {
		return err
	}
	switch s.format {
	case "pretty", "short", "json":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty, short, or json)", s.format)
	}
	uiModeValue, err := readUIMode(s.uiValue)
	if err != nil {
		return err
	}

	var timer *observ.Timer
	if s.timings {
		timer = observ.NewTimer()
	}
	track := func(name string) func(string) {
		if timer == nil {
			return func(string) {}
		}
		return timer.Track(name)
	}

	if len(args) == 0 {
		args, err = defaultCompileTargets(manifestDir)
		if err != nil {
			return err
		}
	}
	stop := track("load inputs")
	inputs, err := pipeline.LoadInputs(args)
	if err != nil {
		return err
	}
	stop(fmt.Sprintf("%d snippet(s)", len(inputs)))

	cleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var cache *driver.ResultCache
	if s.cache {
		cache, err = driver.OpenResultCache("riptide")
		if err != nil {
			return fmt.Errorf("failed to open result cache: %w", err)
		}
	}

	req := &pipeline.Request{
		Inputs:  inputs,
		SDKDir:  s.sdkDir,
		Options: s.options,
		Jobs:    s.jobs,
		Queue:   s.queue,
		Cache:   cache,
	}

	useTUI := shouldUseTUI(uiModeValue) && s.format != "json" && !s.quiet
	var result pipeline.Result
	stop = track("compile batch")
	if useTUI {
		result, err = runPipelineWithUI(ctx, "riptide compile", inputPaths(inputs), req)
	} else {
		result, err = pipeline.Run(ctx, req)
	}
	stop("")
	if err != nil {
		printStageTimings(os.Stdout, s, result.Timings)
		return err
	}

	if err := renderOutcomes(os.Stdout, s, inputs, result); err != nil {
		return err
	}
	if s.outDir != "" {
		if err := writeArtifacts(s.outDir, result.Outcomes); err != nil {
			return err
		}
	}
	printStageTimings(os.Stdout, s, result.Timings)
	if timer != nil {
		fmt.Fprint(os.Stdout, timer.Summary())
	}

	failed := result.FailedCount()
	if !s.quiet && s.format != "json" {
		if failed == 0 {
			fmt.Fprintf(os.Stdout, "compiled %d snippet(s)\n", len(result.Outcomes))
		} else {
			fmt.Fprintf(os.Stdout, "%d of %d snippet(s) failed\n", failed, len(result.Outcomes))
		}
	}
	if failed > 0 {
		// Подавляем cobra usage: проблемы уже напечатаны.
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("")
	}
	return nil
}

// defaultCompileTargets picks the snippets directory next to the manifest.
func defaultCompileTargets(manifestDir string) ([]string, error) {
	if manifestDir == "" {
		return nil, errors.New("nothing to compile: pass .cel files or directories")
	}
	snippets := filepath.Join(manifestDir, "snippets")
	info, err := os.Stat(snippets)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("nothing to compile: pass paths or create %s", snippets)
	}
	return []string{snippets}, nil
}

func inputPaths(inputs []pipeline.Input) []string {
	paths := make([]string, len(inputs))
	for i, in := range inputs {
		paths[i] = in.Path
	}
	return paths
}

func renderOutcomes(out io.Writer, s compileSettings, inputs []pipeline.Input, result pipeline.Result) error {
	switch s.format {
	case "json":
		return renderJSON(out, result)
	case "short":
		for _, o := range result.Outcomes {
			if o.Err != nil {
				fmt.Fprintf(out, "%s: error: %v\n", o.Path, o.Err)
				continue
			}
			diagfmt.Short(out, o.Result.Problems)
		}
	default:
		for i, o := range result.Outcomes {
			renderPretty(out, s, inputs[i], o)
		}
	}
	return nil
}

func renderPretty(out io.Writer, s compileSettings, input pipeline.Input, o pipeline.Outcome) {
	switch {
	case o.Err != nil:
		fmt.Fprintf(out, "%s: compile failed: %v\n", o.Path, o.Err)
	case o.Result.Succeeded():
		if !s.quiet {
			fmt.Fprintf(out, "%s: ok (%d ms)\n", o.Path, o.Result.CompileDuration.Milliseconds())
		}
		diagfmt.Pretty(out, driver.EntryURI, input.Text, o.Result.Problems, prettyOpts(s))
	default:
		errs, warns := diagfmt.Counts(o.Result.Problems)
		fmt.Fprintf(out, "%s: %d error(s), %d warning(s)\n", o.Path, errs, warns)
		diagfmt.Pretty(out, driver.EntryURI, input.Text, o.Result.Problems, prettyOpts(s))
	}
}

func prettyOpts(s compileSettings) diagfmt.PrettyOpts {
	return diagfmt.PrettyOpts{Color: s.color, Context: s.context}
}

type snippetJSON struct {
	Path   string        `json:"path"`
	Error  string        `json:"error,omitempty"`
	Result *codec.Record `json:"result,omitempty"`
}

type batchJSON struct {
	Results []snippetJSON `json:"results"`
	Failed  int           `json:"failed"`
}

func renderJSON(out io.Writer, result pipeline.Result) error {
	batch := batchJSON{
		Results: make([]snippetJSON, 0, len(result.Outcomes)),
		Failed:  result.FailedCount(),
	}
	for _, o := range result.Outcomes {
		entry := snippetJSON{Path: o.Path}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		} else {
			rec := codec.Encode(o.Result)
			entry.Result = &rec
		}
		batch.Results = append(batch.Results, entry)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(batch)
}

// writeArtifacts stores every primary artifact under dir, named after the
// snippet that produced it.
func writeArtifacts(dir string, outcomes []pipeline.Outcome) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil || !o.Result.HasOutput {
			continue
		}
		path := filepath.Join(dir, filepath.Base(o.Path))
		if err := os.WriteFile(path, []byte(o.Result.Output), 0o600); err != nil {
			return fmt.Errorf("failed to write artifact %q: %w", path, err)
		}
	}
	return nil
}

func printStageTimings(out io.Writer, s compileSettings, timings pipeline.Timings) {
	if !s.timings {
		return
	}
	if timings.Has(pipeline.StageSDK) {
		fmt.Fprintf(out, "sdk %.1f ms\n", toMillis(timings.Duration(pipeline.StageSDK)))
	}
	if timings.Has(pipeline.StageCompile) {
		fmt.Fprintf(out, "compiled %.1f ms\n", toMillis(timings.Duration(pipeline.StageCompile)))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
